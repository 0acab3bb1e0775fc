package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/autonex/punchd/internal/attendance/service"
)

type commissionRequest struct {
	Site            string `json:"site,omitempty"`
	DeclaredOffsetS int64  `json:"declared_offset_s,omitempty"`
}

func (s *Server) handleCommission(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceID")

	var req commissionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	offset := time.Duration(req.DeclaredOffsetS) * time.Second
	if err := s.adminService.CommissionDevice(r.Context(), deviceID, req.Site, offset); err != nil {
		s.adminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "device_id": deviceID})
}

func (s *Server) handleQuarantine(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceID")
	if err := s.adminService.QuarantineDevice(r.Context(), deviceID); err != nil {
		s.adminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "device_id": deviceID})
}

func (s *Server) handleReinstate(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("deviceID")
	if err := s.adminService.ReinstateDevice(r.Context(), deviceID); err != nil {
		s.adminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "device_id": deviceID})
}

type remapBadgeRequest struct {
	Badge      string `json:"badge"`
	EmployeeID string `json:"employee_id"`
}

func (s *Server) handleRemapBadge(w http.ResponseWriter, r *http.Request) {
	var req remapBadgeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	if err := s.adminService.RemapBadge(r.Context(), req.Badge, req.EmployeeID); err != nil {
		s.adminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "badge": req.Badge, "employee_id": req.EmployeeID})
}

type resolveConflictRequest struct {
	Compensation *service.CompensationRequest `json:"compensation,omitempty"`
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	conflictID := r.PathValue("conflictID")

	var req resolveConflictRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.adminService.ResolveConflict(r.Context(), conflictID, req.Compensation)
	if err != nil {
		if errors.Is(err, service.ErrConflictUnknown) {
			writeError(w, http.StatusNotFound, "conflict_not_found", err.Error())
			return
		}
		s.adminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) adminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDeviceID):
		writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
	case errors.Is(err, service.ErrInvalidBadge):
		writeError(w, http.StatusBadRequest, "invalid_badge", err.Error())
	case errors.Is(err, service.ErrInvalidEmployeeID):
		writeError(w, http.StatusBadRequest, "invalid_employee_id", err.Error())
	default:
		s.logger.Printf("admin error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}
