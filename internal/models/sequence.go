package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Sequence prefixes
const (
	ShipmentPrefix = "PED"
	LossPrefix     = "PER"
)

var sequenceSuffix = regexp.MustCompile(`-(\d+)$`)

// NextSequenceNumber builds PREFIX-YYYYMMDD-NNNN where NNNN continues the
// counter found at the end of last. An empty or malformed last starts at 1.
func NextSequenceNumber(prefix string, day time.Time, last string) string {
	next := 1
	if m := sequenceSuffix.FindStringSubmatch(last); m != nil {
		n, _ := strconv.Atoi(m[1])
		next = n + 1
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), next)
}
