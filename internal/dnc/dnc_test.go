package dnc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadsmith/leadgen/internal/common"
)

type countingRegistry struct {
	listed map[string]bool
	err    error
	calls  int
}

func (c *countingRegistry) Name() string { return "counting" }
func (c *countingRegistry) IsListed(_ context.Context, number string) (bool, error) {
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.listed[number], nil
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"formatted", "(555) 201-3344", "5552013344"},
		{"with country code", "+1 (555) 201-3344", "5552013344"},
		{"dotted", "555.201.3344", "5552013344"},
		{"bare digits", "5552013344", "5552013344"},
		{"too short", "201-3344", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeNumber(tt.input))
		})
	}
}

func TestChecker_ListedNumber(t *testing.T) {
	reg := &countingRegistry{listed: map[string]bool{"5552013344": true}}
	c := NewChecker(reg, true, nil)

	assert.True(t, c.Check(context.Background(), "(555) 201-3344"))
	assert.False(t, c.Check(context.Background(), "(555) 999-0000"))
}

func TestChecker_CachesPerRun(t *testing.T) {
	reg := &countingRegistry{listed: map[string]bool{"5552013344": true}}
	c := NewChecker(reg, true, nil)

	for i := 0; i < 5; i++ {
		require.True(t, c.Check(context.Background(), "+1 555 201 3344"))
	}
	assert.Equal(t, 1, reg.calls, "one registry hit per distinct number")
}

func TestChecker_NoNumberIsNeverListed(t *testing.T) {
	reg := &countingRegistry{}
	c := NewChecker(reg, false, nil)

	assert.False(t, c.Check(context.Background(), ""))
	assert.Zero(t, reg.calls)
}

func TestChecker_RegistryFailure(t *testing.T) {
	err := common.NewPermanentError("dnc", errors.New("registry down"))

	open := NewChecker(&countingRegistry{err: err}, true, nil)
	assert.False(t, open.Check(context.Background(), "5552013344"),
		"fail-open treats unknown as not listed")

	closed := NewChecker(&countingRegistry{err: err}, false, nil)
	assert.True(t, closed.Check(context.Background(), "5552013344"),
		"fail-closed suppresses sends until the registry answers")
}

func TestMock_ExplicitNumbersAlwaysListed(t *testing.T) {
	m := NewMock(0, "(555) 201-3344")
	listed, err := m.IsListed(context.Background(), "5552013344")
	require.NoError(t, err)
	assert.True(t, listed)

	listed, err = m.IsListed(context.Background(), "5559990000")
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestMock_Deterministic(t *testing.T) {
	m := NewMock(0.5)
	a, _ := m.IsListed(context.Background(), "5552013344")
	b, _ := m.IsListed(context.Background(), "5552013344")
	assert.Equal(t, a, b, "hash-based listing is stable")
}
