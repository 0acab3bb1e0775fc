package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autonex/punchd/internal/attendance/service"
	"github.com/autonex/punchd/internal/attendance/types"
)

type Dependencies struct {
	Logger           *log.Logger
	Addr             string
	IngestService    *service.IngestService
	HeartbeatService *service.HeartbeatService
	QueryService     *service.QueryService
	AdminService     *service.AdminService

	// Gatherer backs GET /metrics. Usually prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

type Server struct {
	httpServer       *http.Server
	logger           *log.Logger
	mux              *http.ServeMux
	ingestService    *service.IngestService
	heartbeatService *service.HeartbeatService
	queryService     *service.QueryService
	adminService     *service.AdminService
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:           d.Logger,
		mux:              mux,
		ingestService:    d.IngestService,
		heartbeatService: d.HeartbeatService,
		queryService:     d.QueryService,
		adminService:     d.AdminService,
	}

	mux.HandleFunc("POST /v1/punch", s.handlePunch)
	mux.HandleFunc("POST /api/attendance", s.handleAttendanceBatch)
	mux.HandleFunc("POST /v1/heartbeat", s.handleHeartbeat)

	mux.HandleFunc("GET /v1/employees/{employeeID}/events", s.handleEvents)
	mux.HandleFunc("GET /v1/employees/{employeeID}/summary", s.handleSummary)
	mux.HandleFunc("GET /v1/conflicts", s.handleConflicts)

	mux.HandleFunc("POST /v1/admin/devices/{deviceID}/commission", s.handleCommission)
	mux.HandleFunc("POST /v1/admin/devices/{deviceID}/quarantine", s.handleQuarantine)
	mux.HandleFunc("POST /v1/admin/devices/{deviceID}/reinstate", s.handleReinstate)
	mux.HandleFunc("POST /v1/admin/badges/remap", s.handleRemapBadge)
	mux.HandleFunc("POST /v1/admin/conflicts/{conflictID}/resolve", s.handleResolveConflict)

	mux.HandleFunc("GET /health", s.handleHealth)

	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// admitStatus maps an admission outcome onto an HTTP status. Every outcome
// is a definite answer; only transport/store failures become 5xx.
func admitStatus(res types.AdmitResult) int {
	switch res.Outcome {
	case types.OutcomeConflict:
		return http.StatusConflict
	case types.OutcomeRejected:
		return http.StatusUnprocessableEntity
	case types.OutcomeOverload:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

func (s *Server) handlePunch(w http.ResponseWriter, r *http.Request) {
	var rp types.RawPunch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&rp); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.ingestService.Ingest(r.Context(), rp)
	if err != nil {
		s.logger.Printf("punch error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, admitStatus(res), res)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.heartbeatService.Record(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDeviceID) {
			writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
			return
		}
		s.logger.Printf("heartbeat error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("employeeID")

	from, to, ok := parseRangeParams(w, r)
	if !ok {
		return
	}

	entries, err := s.queryService.Events(r.Context(), employeeID, from, to)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEmployeeID) {
			writeError(w, http.StatusBadRequest, "invalid_employee_id", err.Error())
			return
		}
		s.logger.Printf("events error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"employee_id": employeeID,
		"from":        from.Format(time.RFC3339),
		"to":          to.Format(time.RFC3339),
		"entries":     entries,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	employeeID := r.PathValue("employeeID")
	day := r.URL.Query().Get("day")
	if day == "" {
		day = time.Now().UTC().Format("2006-01-02")
	}

	sum, err := s.queryService.Summary(r.Context(), employeeID, day)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmployeeID):
			writeError(w, http.StatusBadRequest, "invalid_employee_id", err.Error())
		case errors.Is(err, service.ErrInvalidDay):
			writeError(w, http.StatusBadRequest, "invalid_day", err.Error())
		default:
			s.logger.Printf("summary error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	entries, err := s.queryService.Conflicts(r.Context(), status, parseIntDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		s.logger.Printf("conflicts error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"conflicts": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"service": "punchd attendance receiver",
	})
}
