// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tenantgate/internal/logging"
	"github.com/tomtom215/tenantgate/internal/metrics"
)

// writeTimeout bounds each store write. Writes are detached from the
// request context on purpose: a client abort must not cancel the
// forensic record.
const writeTimeout = 5 * time.Second

// Logger is the async audit writer. Denials enqueue a record onto a
// bounded buffer before the deny response is produced; a background
// goroutine drains the buffer to the store. A slow or unavailable store
// therefore never adds latency to a denial, and a failed write is logged
// locally without reversing the decision.
type Logger struct {
	store   Store
	bus     *EventBus
	records chan *Record

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewLogger creates an audit logger over the given store. bus may be nil
// to disable event fan-out. The returned logger is inert until Serve runs
// (typically under a supervisor) or Start is called.
func NewLogger(store Store, bus *EventBus, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Logger{
		store:    store,
		bus:      bus,
		records:  make(chan *Record, bufferSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue buffers one record for durable writing. Non-blocking: when the
// buffer is full the record is dropped and the drop is logged and
// counted, because stalling a deny response on the sink is worse than a
// lost record.
func (l *Logger) Enqueue(record *Record) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if record.Category == "" {
		record.Category = CategorySecurity
	}

	select {
	case l.records <- record:
		metrics.SetAuditQueueDepth(len(l.records))
	default:
		metrics.RecordAuditDrop()
		logging.Error().
			Str("tenant", record.TenantID).
			Str("actor", record.ActorID).
			Str("action", string(record.Action)).
			Msg("Audit buffer full, record dropped")
	}
}

// Serve drains the buffer to the store until ctx is cancelled, then
// flushes remaining records. Implements suture.Service.
func (l *Logger) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case <-l.stopChan:
			l.drain()
			close(l.done)
			return nil
		case record := <-l.records:
			l.write(record)
			metrics.SetAuditQueueDepth(len(l.records))
		}
	}
}

// Start runs Serve on its own goroutine for callers not using a
// supervisor tree.
func (l *Logger) Start() {
	go func() {
		_ = l.Serve(context.Background())
	}()
}

// Close stops the writer after flushing buffered records. Only valid
// after Start; supervised loggers stop with their supervisor context.
func (l *Logger) Close() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		<-l.done
	})
}

// drain writes everything still buffered.
func (l *Logger) drain() {
	for {
		select {
		case record := <-l.records:
			l.write(record)
		default:
			return
		}
	}
}

// write persists one record and publishes it to the event bus.
// Failures are logged locally and never re-raised.
func (l *Logger) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := l.store.Append(ctx, record); err != nil {
		logging.Error().Err(err).
			Str("tenant", record.TenantID).
			Str("actor", record.ActorID).
			Str("action", string(record.Action)).
			Msg("Audit store write failed")
	}

	if l.bus != nil {
		l.bus.Publish(record)
	}
}
