package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/autonex/punchd/internal/attendance/types"
)

// maxBatchRecords caps one upload; the device uploaders chunk their backlog
// into batches of at most this size and retry a whole batch on failure.
const maxBatchRecords = 50

// batchRecord is the upload format of the fielded terminal firmware. Older
// uploaders send user_id/punch_time; newer ones send badge/seq/punched_at.
// Both map onto the same raw punch.
type batchRecord struct {
	DeviceID   string   `json:"device_id"`
	Badge      string   `json:"badge,omitempty"`
	UserID     string   `json:"user_id,omitempty"`
	Seq        uint64   `json:"seq,omitempty"`
	PunchedAt  string   `json:"punched_at,omitempty"`
	PunchTime  string   `json:"punch_time,omitempty"`
	PunchType  string   `json:"punch_type,omitempty"`
	Name       string   `json:"name,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (b batchRecord) toRawPunch() types.RawPunch {
	badge := b.Badge
	if badge == "" {
		badge = b.UserID
	}
	punchedAt := b.PunchedAt
	if punchedAt == "" {
		punchedAt = b.PunchTime
	}
	return types.RawPunch{
		DeviceID:   b.DeviceID,
		Badge:      badge,
		DeviceSeq:  b.Seq,
		PunchedAt:  punchedAt,
		PunchType:  b.PunchType,
		Name:       b.Name,
		Confidence: b.Confidence,
	}
}

type batchResponse struct {
	Status   string              `json:"status"`
	Received int                 `json:"received"`
	Saved    int                 `json:"saved"`
	Results  []types.AdmitResult `json:"results"`
}

// handleAttendanceBatch is the bulk upload endpoint terminals hit when
// flushing their on-device backlog. Records are admitted one by one in
// upload order; per-record outcomes never fail the batch. The batch as a
// whole errors only on malformed JSON or a store failure, and the uploader
// retries the whole batch; admission is idempotent, so that is safe.
func (s *Server) handleAttendanceBatch(w http.ResponseWriter, r *http.Request) {
	var records []batchRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "body must be a JSON array of records")
		return
	}
	if len(records) > maxBatchRecords {
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large", "at most 50 records per upload")
		return
	}

	resp := batchResponse{
		Status:   "success",
		Received: len(records),
		Results:  make([]types.AdmitResult, 0, len(records)),
	}

	for _, rec := range records {
		res, err := s.ingestService.Ingest(r.Context(), rec.toRawPunch())
		if err != nil {
			s.logger.Printf("batch ingest error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		resp.Results = append(resp.Results, res)
		switch res.Outcome {
		case types.OutcomeAccepted, types.OutcomeReordered, types.OutcomeDuplicate:
			resp.Saved++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
