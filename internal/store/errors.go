package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateLossLine is returned when a correction repeats a loss line already recorded for that day
	ErrDuplicateLossLine = errors.New("duplicate loss line")

	// ErrDuplicateNumber is returned when a generated shipment or loss number is already taken
	ErrDuplicateNumber = errors.New("sequence number already taken")

	// ErrItemNotInShipment is returned when a delivery names a salad type the shipment never requested
	ErrItemNotInShipment = errors.New("salad type not in shipment")
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
