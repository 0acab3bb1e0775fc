package types

import "time"

// TrustState classifies how much the engine trusts a device's punches.
// Devices are never deleted; the worst that happens is quarantine.
type TrustState string

const (
	TrustTrusted     TrustState = "trusted"
	TrustProbation   TrustState = "probation"
	TrustQuarantined TrustState = "quarantined"
)

// Rank orders trust states for tie-breaking: higher means more trusted.
func (t TrustState) Rank() int {
	switch t {
	case TrustTrusted:
		return 2
	case TrustProbation:
		return 1
	default:
		return 0
	}
}

// Escalate returns the next-worse trust state.
func (t TrustState) Escalate() TrustState {
	switch t {
	case TrustTrusted:
		return TrustProbation
	default:
		return TrustQuarantined
	}
}

// Device is the registry's view of a terminal. Created on first contact
// (uncommissioned, probation) and promoted by administrative action.
type Device struct {
	DeviceID       string        `json:"device_id"`
	Site           string        `json:"site,omitempty"`
	Commissioned   bool          `json:"commissioned"`
	Trust          TrustState    `json:"trust"`
	DeclaredOffset time.Duration `json:"-"`
	FirstSeen      time.Time     `json:"first_seen,omitempty"`
	LastSeen       time.Time     `json:"last_seen,omitempty"`
}

// HeartbeatRequest is the periodic status report a terminal sends.
type HeartbeatRequest struct {
	DeviceID        string `json:"device_id"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_s,omitempty"`
	PendingBacklog  *int   `json:"pending_backlog,omitempty"` // unsynced punches buffered on-device
	IP              string `json:"ip,omitempty"`
	Sequence        uint64 `json:"sequence,omitempty"`
}

// HeartbeatResponse acknowledges a heartbeat and tells the device whether
// the server recognises it as commissioned.
type HeartbeatResponse struct {
	OK         bool   `json:"ok"`
	Known      bool   `json:"known"`
	DeviceID   string `json:"device_id"`
	ServerTime string `json:"server_time"`
}
