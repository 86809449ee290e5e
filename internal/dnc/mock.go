package dnc

import (
	"context"
	"hash/fnv"
)

// Mock is a deterministic stand-in registry. A fraction of numbers hash
// onto the list so runs are reproducible without network access.
type Mock struct {
	listRate float64
	listed   map[string]bool
}

// NewMock lists roughly listRate of all numbers, plus any explicit
// numbers given, which are always listed.
func NewMock(listRate float64, listedNumbers ...string) *Mock {
	m := &Mock{listRate: listRate, listed: make(map[string]bool)}
	for _, n := range listedNumbers {
		if norm := NormalizeNumber(n); norm != "" {
			m.listed[norm] = true
		}
	}
	return m
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) IsListed(_ context.Context, number string) (bool, error) {
	if m.listed[number] {
		return true, nil
	}
	if m.listRate <= 0 {
		return false, nil
	}
	h := fnv.New32a()
	h.Write([]byte(number))
	return float64(h.Sum32()%1000)/1000.0 < m.listRate, nil
}
