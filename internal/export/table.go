package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Table is one tabular section of a report
type Table struct {
	Title   string
	Headers []string
	Rows    [][]interface{}
	// Detail tables are capped in the PDF and written in full to the spreadsheet
	Detail bool
}

// formatCell renders a value the way it is printed in the document
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case decimal.Decimal:
		return val.StringFixed(2)
	case time.Time:
		return val.Format("2006-01-02")
	case float64:
		return fmt.Sprintf("%.2f", val)
	default:
		return fmt.Sprint(val)
	}
}

// cellValue converts a value into something excelize stores natively
func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case decimal.Decimal:
		f, _ := val.Round(2).Float64()
		return f
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return val
	}
}
