// Package archive mirrors committed ledger events to a central Postgres
// so headquarters can aggregate attendance across sites. The local SQLite
// ledger stays authoritative; the archive is a best-effort replica and the
// forwarder is disabled entirely when no DSN is configured.
package archive

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/autonex/punchd/internal/attendance/types"
	"github.com/autonex/punchd/internal/metrics"
)

const ensureSchema = `
CREATE TABLE IF NOT EXISTS attendance_events (
  event_id     TEXT PRIMARY KEY,
  employee_id  TEXT NOT NULL,
  punch_type   TEXT NOT NULL,
  resolved_at  TIMESTAMPTZ NOT NULL,
  ingested_at  TIMESTAMPTZ NOT NULL,
  device_id    TEXT NOT NULL,
  device_seq   BIGINT NOT NULL,
  badge        TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  confidence   DOUBLE PRECISION,
  archived_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_attendance_employee_time
  ON attendance_events(employee_id, resolved_at);`

// Forwarder batches committed events into the archive. Events are enqueued
// non-blocking from the admission path; when the queue is full the event is
// dropped and counted; ingestion must never stall on the archive.
type Forwarder struct {
	pool      *pgxpool.Pool
	queue     chan types.CanonicalEvent
	batchSize int
	maxWait   time.Duration
	logger    *log.Logger
	m         *metrics.Metrics
	done      chan struct{}

	// insert is the batch writer; swapped out in tests.
	insert func(ctx context.Context, items []types.CanonicalEvent) (int64, error)
}

func NewForwarder(ctx context.Context, dsn string, logger *log.Logger, m *metrics.Metrics) (*Forwarder, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse archive dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive pool: %w", err)
	}
	if _, err := pool.Exec(ctx, ensureSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}
	f := &Forwarder{
		pool:      pool,
		queue:     make(chan types.CanonicalEvent, 4096),
		batchSize: 100,
		maxWait:   2 * time.Second,
		logger:    logger,
		m:         m,
		done:      make(chan struct{}),
	}
	f.insert = f.insertBatch
	return f, nil
}

// Enqueue hands an event to the forwarder. Non-blocking.
func (f *Forwarder) Enqueue(ev types.CanonicalEvent) {
	select {
	case f.queue <- ev:
	default:
		f.m.ArchiveDropped.Inc()
	}
}

// Start runs the batching loop until ctx is cancelled. A final flush runs
// on shutdown.
func (f *Forwarder) Start(ctx context.Context) {
	go func() {
		defer close(f.done)

		batch := make([]types.CanonicalEvent, 0, f.batchSize)
		t := time.NewTimer(f.maxWait)
		defer t.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			n, err := f.insert(context.Background(), batch)
			if err != nil {
				// The archive is a replica; a failed batch is logged and
				// dropped, the SQLite ledger still has every event.
				f.logger.Printf("archive batch failed: err=%v dropped=%d", err, len(batch))
			} else {
				f.m.ArchivedEvents.Add(float64(n))
			}
			batch = batch[:0]
		}

		resetTimer := func() {
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
			t.Reset(f.maxWait)
		}

		for {
			select {
			case <-ctx.Done():
				flush()
				return
			case ev := <-f.queue:
				batch = append(batch, ev)
				if len(batch) >= f.batchSize {
					// Restart the wait too, or a lone event arriving right
					// after a full batch flushes almost immediately.
					flush()
					resetTimer()
				}
			case <-t.C:
				flush()
				t.Reset(f.maxWait)
			}
		}
	}()
}

// Stop waits for the loop to drain after its context is cancelled, then
// closes the pool.
func (f *Forwarder) Stop() {
	<-f.done
	f.pool.Close()
}

// insertBatch writes one multi-row INSERT with ON CONFLICT DO NOTHING;
// event_id is the primary key, so replays and overlapping batches are
// idempotent on the archive side too.
func (f *Forwarder) insertBatch(ctx context.Context, items []types.CanonicalEvent) (int64, error) {
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*10)

	i := 1
	for _, ev := range items {
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			i, i+1, i+2, i+3, i+4, i+5, i+6, i+7, i+8, i+9))
		i += 10

		var confidence any
		if ev.Confidence != nil {
			confidence = *ev.Confidence
		}
		args = append(args,
			ev.EventID, ev.EmployeeID, string(ev.Type),
			ev.ResolvedAt.UTC(), ev.IngestedAt.UTC(),
			ev.DeviceID, int64(ev.DeviceSeq), ev.Badge, ev.Name, confidence,
		)
	}

	sql := `INSERT INTO attendance_events (
event_id, employee_id, punch_type, resolved_at, ingested_at,
device_id, device_seq, badge, display_name, confidence
) VALUES ` + strings.Join(placeholders, ",") + ` ON CONFLICT DO NOTHING`

	ct, err := f.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
