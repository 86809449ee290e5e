package enrich

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/leadsmith/leadgen/internal/lead"
)

// Fixture corpora for the mock provider. Randomness lives only here, never
// in the pipeline or compliance logic.
var (
	mockFirstNames = []string{
		"John", "Jane", "Michael", "Sarah", "David", "Lisa", "Robert", "Emily",
		"James", "Ashley", "Christopher", "Amanda", "Matthew", "Jessica", "Joshua",
		"Jennifer", "Daniel", "Elizabeth", "Anthony", "Megan",
	}
	mockLastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson",
		"Thomas", "Taylor", "Moore", "Jackson", "Martin",
	}
	mockEmailDomains = []string{
		"gmail.com", "yahoo.com", "outlook.com", "hotmail.com",
		"company.com", "business.net", "enterprise.org", "corp.com",
	}
	mockAreaCodes = []string{
		"555", "323", "213", "415", "212", "718", "646", "917", "310", "424",
	}
)

// Mock simulates a contact-data provider. Results are derived from a seeded
// source so tests are reproducible; a configurable miss rate exercises the
// not-found path.
type Mock struct {
	mu       sync.Mutex
	rng      *rand.Rand
	missRate float64 // 0..1, fraction of lookups that return ErrNotFound
}

func NewMock(seed int64, missRate float64) *Mock {
	return &Mock{rng: rand.New(rand.NewSource(seed)), missRate: missRate}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Lookup(_ context.Context, req LookupRequest) (lead.ContactInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rng.Float64() < m.missRate {
		return lead.ContactInfo{}, ErrNotFound
	}

	first := mockFirstNames[m.rng.Intn(len(mockFirstNames))]
	last := mockLastNames[m.rng.Intn(len(mockLastNames))]

	return lead.ContactInfo{
		OwnerName: first + " " + last,
		Email:     m.mockEmail(first, last, req.BusinessName),
		Mobile:    m.mockPhone(),
	}, nil
}

func (m *Mock) mockEmail(first, last, business string) string {
	clean := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return -1
	}, business)
	if len(clean) > 10 {
		clean = clean[:10]
	}

	switch m.rng.Intn(3) {
	case 0:
		return fmt.Sprintf("%s.%s@%s", strings.ToLower(first), strings.ToLower(last), mockEmailDomains[m.rng.Intn(len(mockEmailDomains))])
	case 1:
		return fmt.Sprintf("%s%s@%s", strings.ToLower(first), strings.ToLower(last), mockEmailDomains[m.rng.Intn(len(mockEmailDomains))])
	default:
		if clean == "" {
			clean = "company"
		}
		return fmt.Sprintf("%s@%s.com", strings.ToLower(first), clean)
	}
}

func (m *Mock) mockPhone() string {
	area := mockAreaCodes[m.rng.Intn(len(mockAreaCodes))]
	return fmt.Sprintf("+1%s%03d%04d", area, 200+m.rng.Intn(800), 1000+m.rng.Intn(9000))
}
