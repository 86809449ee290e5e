package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	OCR       OCRConfig       `yaml:"ocr"`
	LLM       LLMConfig       `yaml:"llm"`
	Enrich    ProviderConfig  `yaml:"enrich"`
	DNC       ProviderConfig  `yaml:"dnc"`
	Transport TransportConfig `yaml:"transport"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
}

// StoreConfig holds lead store configuration. DSN selects the backend:
// postgres:// URLs use pgx, anything else is treated as a SQLite path.
type StoreConfig struct {
	DSN         string        `yaml:"dsn"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// OCRConfig holds text extraction configuration
type OCRConfig struct {
	Pdftotext     string `yaml:"pdftotext"`
	Pdftoppm      string `yaml:"pdftoppm"`
	Tesseract     string `yaml:"tesseract"`
	TesseractLang string `yaml:"tesseractLang"`
	TessdataDir   string `yaml:"tessdataDir"`
	DPI           int    `yaml:"dpi"`
	MaxPages      int    `yaml:"maxPages"`
}

// LLMConfig holds field extraction service configuration
type LLMConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ProviderConfig selects a collaborator variant: "mock" or "live".
// MockSeed and MockRate only apply in mock mode: the rate is the miss
// rate for the enrichment provider and the list rate for the DNC
// registry.
type ProviderConfig struct {
	Mode     string        `yaml:"mode"`
	BaseURL  string        `yaml:"baseUrl"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
	MockSeed int64         `yaml:"mockSeed"`
	MockRate float64       `yaml:"mockRate"`
}

// TransportConfig selects the outbound message transport.
type TransportConfig struct {
	Mode         string        `yaml:"mode"` // "mock" or "live"
	SMSWebhook   string        `yaml:"smsWebhook"`
	EmailWebhook string        `yaml:"emailWebhook"`
	APIKey       string        `yaml:"apiKey"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PipelineConfig bounds document processing.
type PipelineConfig struct {
	Workers       int     `yaml:"workers"`
	MinConfidence float32 `yaml:"minConfidence"`
}

// DispatchConfig bounds campaign dispatch.
type DispatchConfig struct {
	MaxSendAttempts int           `yaml:"maxSendAttempts"`
	Interval        time.Duration `yaml:"interval"`
}

// LoadConfig loads configuration from an optional YAML file (LEADGEN_CONFIG)
// with environment variables taking precedence over file values.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("LEADGEN_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Store:  StoreConfig{DSN: "leads.db", DialTimeout: 3 * time.Second},
		Server: ServerConfig{Addr: ":8080"},
		OCR: OCRConfig{
			Pdftotext:     "pdftotext",
			Pdftoppm:      "pdftoppm",
			Tesseract:     "tesseract",
			TesseractLang: "eng",
			DPI:           300,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.1,
			Timeout:     45 * time.Second,
		},
		Enrich:    ProviderConfig{Mode: "mock", Timeout: 10 * time.Second, MockRate: 0.2},
		DNC:       ProviderConfig{Mode: "mock", Timeout: 10 * time.Second, MockRate: 0.2},
		Transport: TransportConfig{Mode: "mock", Timeout: 15 * time.Second},
		Pipeline:  PipelineConfig{Workers: 4, MinConfidence: 0.60},
		Dispatch:  DispatchConfig{MaxSendAttempts: 3, Interval: 5 * time.Minute},
	}
}

func applyEnv(cfg *Config) {
	cfg.Store.DSN = getEnv("LEADSTORE_DSN", cfg.Store.DSN)
	cfg.Server.Addr = getEnv("HTTP_ADDR", cfg.Server.Addr)

	cfg.OCR.Tesseract = getEnv("TESSERACT_CMD", cfg.OCR.Tesseract)
	cfg.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", cfg.OCR.TessdataDir)

	cfg.LLM.BaseURL = getEnv("OPENAI_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", cfg.LLM.Timeout)

	cfg.Enrich.Mode = getEnv("ENRICH_MODE", cfg.Enrich.Mode)
	cfg.Enrich.BaseURL = getEnv("ENRICH_BASE_URL", cfg.Enrich.BaseURL)
	cfg.Enrich.APIKey = getEnv("ENRICH_API_KEY", cfg.Enrich.APIKey)

	cfg.DNC.Mode = getEnv("DNC_MODE", cfg.DNC.Mode)
	cfg.DNC.BaseURL = getEnv("DNC_BASE_URL", cfg.DNC.BaseURL)
	cfg.DNC.APIKey = getEnv("DNC_API_KEY", cfg.DNC.APIKey)

	cfg.Transport.Mode = getEnv("TRANSPORT_MODE", cfg.Transport.Mode)
	cfg.Transport.SMSWebhook = getEnv("SMS_WEBHOOK_URL", cfg.Transport.SMSWebhook)
	cfg.Transport.EmailWebhook = getEnv("EMAIL_WEBHOOK_URL", cfg.Transport.EmailWebhook)
	cfg.Transport.APIKey = getEnv("TRANSPORT_API_KEY", cfg.Transport.APIKey)

	cfg.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", cfg.Pipeline.Workers)
	cfg.Pipeline.MinConfidence = getEnvAsFloat32("PIPELINE_MIN_CONFIDENCE", cfg.Pipeline.MinConfidence)
	cfg.Dispatch.MaxSendAttempts = getEnvAsInt("DISPATCH_MAX_ATTEMPTS", cfg.Dispatch.MaxSendAttempts)
	cfg.Dispatch.Interval = getEnvAsDuration("DISPATCH_INTERVAL", cfg.Dispatch.Interval)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
