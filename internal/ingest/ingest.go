package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leadsmith/leadgen/constants"
)

// Document is a discovered filing document ready for processing.
type Document struct {
	Path       string
	Ext        string
	HashHex    string
	SourceType constants.SourceType
	Err        string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Hashed  uint32
	Failed  uint32
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

// Describe hashes a single path and classifies its source. The hash keys
// ingest-job dedup so a document already processed is not re-parsed.
func Describe(path string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, err
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if !AllowedExt(ext) {
		return Document{}, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	hash, err := HashFile(abs)
	if err != nil {
		return Document{}, err
	}

	return Document{
		Path:       abs,
		Ext:        ext,
		HashHex:    hash,
		SourceType: constants.ClassifySource(filepath.Base(abs)),
	}, nil
}

// HashFile returns the hex SHA-256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
