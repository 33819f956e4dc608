package accesslog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of an access attempt.
type Status string

// Access outcomes.
const (
	StatusSuccess Status = "sucesso"
	StatusFailure Status = "falha"
)

// Areas used by entries the service produces itself.
const (
	AreaLogin = "auth.login"
)

// ErrInvalid is returned when an entry fails validation.
var ErrInvalid = errors.New("accesslog: invalid entry")

const maxAreaLength = 255

// Entry is a single access attempt.
type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Area       string    `json:"access_area"`
	AccessTime time.Time `json:"access_time"`
	Status     Status    `json:"status"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Validate checks the required fields of an entry.
func (e *Entry) Validate() error {
	e.Area = strings.TrimSpace(e.Area)
	if e.Area == "" {
		return fmt.Errorf("%w: access_area is required", ErrInvalid)
	}
	if len(e.Area) > maxAreaLength {
		return fmt.Errorf("%w: access_area exceeds %d characters", ErrInvalid, maxAreaLength)
	}
	if e.Status != StatusSuccess && e.Status != StatusFailure {
		return fmt.Errorf("%w: status must be %q or %q", ErrInvalid, StatusSuccess, StatusFailure)
	}
	return nil
}

// Filter controls which entries List returns.
type Filter struct {
	UserID string // optional: entries for one user
	Area   string // optional: entries for one area
	Status Status // optional: only successes or failures
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ListResult contains a page of entries and the total matching count.
type ListResult struct {
	Logs   []Entry `json:"logs"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
