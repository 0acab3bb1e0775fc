package types

import "time"

// PunchType classifies a punch as a clock-in, clock-out, or an event the
// terminal could not classify (some firmware revisions only report "punch").
type PunchType string

const (
	PunchIn      PunchType = "in"
	PunchOut     PunchType = "out"
	PunchUnknown PunchType = "unknown"
)

// ParsePunchType maps a device-reported punch_type string onto a PunchType.
// Anything unrecognised becomes PunchUnknown rather than an error; old
// firmware sends values like "auto" and those punches are still worth keeping.
func ParsePunchType(s string) PunchType {
	switch s {
	case "in", "IN", "clock_in":
		return PunchIn
	case "out", "OUT", "clock_out":
		return PunchOut
	default:
		return PunchUnknown
	}
}

// RawPunch is the payload a terminal POSTs for a single punch.
// Field names match the device uploader's JSON.
type RawPunch struct {
	DeviceID   string   `json:"device_id"`
	Badge      string   `json:"badge"`
	DeviceSeq  uint64   `json:"seq"`
	PunchedAt  string   `json:"punched_at"` // device-local time, RFC3339
	PunchType  string   `json:"punch_type,omitempty"`
	Name       string   `json:"name,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"` // recognizer score, if any
}

// CanonicalEvent is the normalized, immutable form of a punch. EventID is a
// content hash of the identifying RawPunch fields, so re-delivery of the same
// physical punch always produces the same EventID.
type CanonicalEvent struct {
	EventID    string    `json:"event_id"`
	EmployeeID string    `json:"employee_id"`
	Type       PunchType `json:"punch_type"`
	ResolvedAt time.Time `json:"resolved_at"`
	IngestedAt time.Time `json:"ingested_at"`
	DeviceID   string    `json:"device_id"`
	DeviceSeq  uint64    `json:"device_seq"`
	Badge      string    `json:"badge"`
	Name       string    `json:"name,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`

	// TieRank is the source device's trust rank at admission time, persisted
	// so that equal-timestamp ordering stays reproducible after trust changes.
	TieRank int `json:"-"`

	// SkewApplied is the learned clock correction already folded into
	// ResolvedAt. The estimator needs it to recover the raw device offset.
	SkewApplied time.Duration `json:"-"`

	// Unverified marks events from devices that were never commissioned.
	Unverified bool `json:"unverified_device,omitempty"`
}

// Outcome is the definite result of an admit call.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate_ignored"
	OutcomeReordered Outcome = "reordered"
	OutcomeConflict  Outcome = "conflict"
	OutcomeRejected  Outcome = "rejected"
	OutcomeOverload  Outcome = "overload"
)

// Reason codes returned alongside Rejected / Conflict outcomes.
const (
	ReasonMissingDeviceID     = "missing_device_id"
	ReasonMissingBadge        = "missing_badge"
	ReasonBadTimestamp        = "bad_timestamp"
	ReasonUnknownBadge        = "unknown_badge"
	ReasonTimestampOutOfBound = "timestamp_out_of_bounds"
	ReasonDeviceQuarantined   = "device_quarantined"
	ReasonDoubleSameType      = "double_same_type"
	ReasonDuplicateWindow     = "same_type_window"
	ReasonQueueFull           = "device_queue_full"
)

// AdmitResult is what the ingestion entry point hands back to the transport.
type AdmitResult struct {
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
	EventID    string  `json:"event_id,omitempty"`
	ConflictID string  `json:"conflict_id,omitempty"`
}
