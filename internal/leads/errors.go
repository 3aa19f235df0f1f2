package leads

import "errors"

var (
	// ErrMissingPhone is returned when an upsert carries no lead phone.
	ErrMissingPhone = errors.New("leads: phone is required")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("leads: lead not found")
)
