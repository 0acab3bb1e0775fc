package types

import "time"

// WorkSession is one paired in/out interval within a day. Out is nil while
// the session is still open (trailing `in` with no matching `out`).
type WorkSession struct {
	In  time.Time  `json:"in"`
	Out *time.Time `json:"out,omitempty"`
}

// DaySummary is the derived attendance summary for one employee-day.
// A day whose last session has no closing `out` is flagged Open, not an error.
type DaySummary struct {
	EmployeeID string        `json:"employee_id"`
	Day        string        `json:"day"` // YYYY-MM-DD, UTC
	FirstIn    *time.Time    `json:"first_in,omitempty"`
	LastOut    *time.Time    `json:"last_out,omitempty"`
	Total      time.Duration `json:"-"`
	TotalStr   string        `json:"total_duration"`
	Sessions   []WorkSession `json:"sessions,omitempty"`
	Open       bool          `json:"open"`
}
