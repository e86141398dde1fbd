package alerts

import (
	"errors"

	"github.com/almadesk/recurring-alerts/internal/storage"
)

var (
	// ErrNotFound is returned when the alert id does not exist
	ErrNotFound = storage.ErrNotFound

	// ErrInvalidTransition is returned when a lifecycle operation targets a
	// RESOLVED or DISMISSED alert
	ErrInvalidTransition = errors.New("invalid alert status transition")

	// ErrBelowMinimum is returned when a pattern has fewer members than the configured floor
	ErrBelowMinimum = errors.New("pattern below minimum occurrences")
)
