package models

import "fmt"

// InsufficientSlotsError reports how far session generation got before
// the date range ran out. Carried inside the typed workflow error so
// callers can read FoundCount and shrink the request.
type InsufficientSlotsError struct {
	Requested  int `json:"requested"`
	FoundCount int `json:"found_count"`
}

// Error implements the error interface.
func (e *InsufficientSlotsError) Error() string {
	return fmt.Sprintf("found %d of %d requested sessions in range", e.FoundCount, e.Requested)
}
