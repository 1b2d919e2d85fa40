package export

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func detailTable(n int) Table {
	t := Table{
		Title:   "Detailed losses",
		Headers: []string{"store", "quantity", "value"},
		Detail:  true,
	}
	for i := 1; i <= n; i++ {
		t.Rows = append(t.Rows, []interface{}{fmt.Sprintf("Loja-%02d", i), i, decimal.NewFromFloat(12.5)})
	}
	return t
}

func TestWriteXLSXKeepsEveryRow(t *testing.T) {
	summary := Table{Headers: []string{"total_lost", "total_value"}, Rows: [][]interface{}{{8, decimal.NewFromFloat(100)}}}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "losses", []Table{summary, detailTable(25)}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("losses")
	require.NoError(t, err)

	assert.Equal(t, []string{"total_lost", "total_value"}, rows[0])
	assert.Equal(t, []string{"8", "100"}, rows[1])
	// blank separator, title, header, 25 rows
	assert.Equal(t, "Detailed losses", rows[3][0])
	assert.Equal(t, []string{"store", "quantity", "value"}, rows[4])
	assert.Len(t, rows, 5+25)
	assert.Equal(t, "Loja-25", rows[len(rows)-1][0])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Relatorio", sheetName("  "))
	assert.Equal(t, "a-b-c", sheetName("a/b:c"))
	assert.Len(t, sheetName("a-very-long-sheet-name-that-excel-will-reject"), maxSheetName)
}

func TestPDFCapsDetailRows(t *testing.T) {
	doc := NewPDF("Loss report", time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	doc.doc.SetCompression(false)
	doc.AddSection(detailTable(25), 20)

	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))

	out := buf.String()
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Contains(t, out, "Loja-20")
	assert.NotContains(t, out, "Loja-21")
	assert.Contains(t, out, "Showing 20 of 25 rows")
}

func TestPDFWithoutLimitDrawsAllRowsAcrossPages(t *testing.T) {
	doc := NewPDF("Loss report", time.Now())
	doc.doc.SetCompression(false)
	doc.AddSection(detailTable(80), 0)

	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))

	assert.Contains(t, buf.String(), "Loja-80")
	assert.Greater(t, doc.doc.PageCount(), 1)
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "12.50", formatCell(decimal.NewFromFloat(12.5)))
	assert.Equal(t, "2024-01-15", formatCell(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "80", formatCell(80))
}
