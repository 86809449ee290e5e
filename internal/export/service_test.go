package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/leadsmith/leadgen/constants"
	"github.com/leadsmith/leadgen/internal/lead"
	"github.com/leadsmith/leadgen/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExportLeadsXLSX(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	amount := decimal.RequireFromString("45750.00")
	l := lead.FromCandidate(lead.Candidate{
		BusinessName: "Johnson Enterprise Solutions LLC",
		FilingType:   constants.FilingLien,
		CaseOrLienID: "2024-CV-001234",
		ClaimAmount:  &amount,
		Narrative:    "State tax lien for unpaid taxes.",
	})
	require.NoError(t, st.CreateLead(ctx, l))

	data, err := NewService(st, testLogger()).ExportLeadsXLSX(ctx, store.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Business Name", rows[0][0])
	assert.Equal(t, "Claim Amount", rows[0][4])
	assert.Equal(t, "Johnson Enterprise Solutions LLC", rows[1][0])
	assert.Equal(t, "lien", rows[1][1])
	assert.Equal(t, "2024-CV-001234", rows[1][2])
	assert.Equal(t, "45750.00", rows[1][4])
	assert.Equal(t, "NEW", rows[1][11])
}

func TestExportEmptyStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, ":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	data, err := NewService(st, testLogger()).ExportLeadsXLSX(ctx, store.Filter{})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Leads")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 140))
	long := string(bytes.Repeat([]byte("a"), 200))
	got := truncate(long, 140)
	assert.Len(t, []rune(got), 140)
	assert.Equal(t, '…', []rune(got)[139])
}
