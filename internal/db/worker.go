package db

import (
	"context"
	"database/sql"
)

type TxFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

// Worker serializes all write transactions through a single goroutine.
// SQLite allows one writer at a time; funnelling every mutation through
// here turns SQLITE_BUSY storms into an orderly queue and makes each
// submitted transaction all-or-nothing from the caller's point of view.
type Worker struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}
}

// NewWorker starts the write loop. queueDepth bounds how many transactions
// may wait in the buffer before Do blocks; zero or negative picks the default.
func NewWorker(db *sql.DB, queueDepth int) *Worker {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	w := &Worker{
		db:   db,
		jobs: make(chan job, queueDepth),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
}

func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	// Enqueue; bail out if the caller's context expires while the buffer is full.
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Wait for the result. If the caller's context expires first, the worker
	// still runs the transaction to completion (commit or rollback, never a
	// partial write); the result lands in the buffered ch and is discarded.
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		tx, err := w.db.BeginTx(j.ctx, nil)
		if err != nil {
			j.ch <- err
			continue
		}

		if err := j.fn(j.ctx, tx); err != nil {
			_ = tx.Rollback()
			j.ch <- err
			continue
		}

		j.ch <- tx.Commit()
	}
}
