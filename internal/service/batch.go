package service

import (
	"math"
	"regexp"
	"strings"
	"time"
)

const batchPrefix = "LOTE-"

var batchPattern = regexp.MustCompile(`^LOTE-\d{8}$`)

// ValidateBatchNumber reports whether batch is LOTE-YYYYMMDD with a real calendar date
func ValidateBatchNumber(batch string) bool {
	_, err := BatchDate(batch)
	return err == nil
}

// BatchDate parses the production date encoded in a batch number
func BatchDate(batch string) (time.Time, error) {
	if !batchPattern.MatchString(batch) {
		return time.Time{}, ErrInvalidBatchNumber
	}
	// time.Parse rejects impossible days such as Feb 30
	day, err := time.Parse("20060102", strings.TrimPrefix(batch, batchPrefix))
	if err != nil {
		return time.Time{}, ErrInvalidBatchNumber
	}
	return day, nil
}

// DefaultBatchNumber is the batch code production uses for a given day
func DefaultBatchNumber(day time.Time) string {
	return batchPrefix + day.Format("20060102")
}

// ValidateCorrectionDates enforces batch <= loss <= correction <= today, all compared as calendar days
func ValidateCorrectionDates(batch, loss, correction, today time.Time) error {
	batch, loss, correction, today = dateOnly(batch), dateOnly(loss), dateOnly(correction), dateOnly(today)

	switch {
	case batch.After(today):
		return invalid("batch_date", "batch date cannot be in the future")
	case loss.After(today):
		return invalid("loss_date", "loss date cannot be in the future")
	case correction.After(today):
		return invalid("correction_date", "correction date cannot be in the future")
	case loss.Before(batch):
		return invalid("loss_date", "loss date cannot precede batch date")
	case correction.Before(loss):
		return invalid("correction_date", "correction date cannot precede loss date")
	}
	return nil
}

// roundPercent returns round(part/whole*100) with halves rounded up, 0 when whole is 0
func roundPercent(part, whole float64) int {
	if whole == 0 {
		return 0
	}
	return int(math.Floor(part/whole*100 + 0.5))
}

// dateOnly truncates t to midnight UTC of its own calendar day
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// today is the current calendar day in loc
func today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return dateOnly(now.In(loc))
}
