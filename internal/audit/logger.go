// Package audit writes the audit trail of alert lifecycle transitions without
// blocking the caller.
package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/almadesk/recurring-alerts/internal/metrics"
	"github.com/almadesk/recurring-alerts/internal/models"
	"github.com/almadesk/recurring-alerts/internal/storage"
	"github.com/sirupsen/logrus"
)

// EntityRecurringAlert is the entity type recorded for every alert transition
const EntityRecurringAlert = "RecurringAlert"

const defaultQueueSize = 256

// RequestMeta identifies who triggered a lifecycle operation
type RequestMeta struct {
	UserID    *int64
	IPAddress string
	UserAgent string
}

type metaKey struct{}

// WithRequestMeta attaches request metadata to ctx
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// RequestMetaFrom returns the metadata attached to ctx, if any
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(metaKey{}).(RequestMeta)
	return meta
}

// Logger persists audit entries on a background worker
type Logger struct {
	repo    storage.AuditRepository
	entries chan models.AuditEntry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewLogger starts the worker. queueSize <= 0 uses the default.
func NewLogger(repo storage.AuditRepository, queueSize int) *Logger {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	l := &Logger{
		repo:    repo,
		entries: make(chan models.AuditEntry, queueSize),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// LogAudit enqueues entry and returns immediately. Entries are dropped when the
// queue is full or the logger is closed.
func (l *Logger) LogAudit(entry models.AuditEntry) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		logrus.Warnf("Audit logger closed, dropping %s for %s %d", entry.Action, entry.EntityType, entry.EntityID)
		return
	}

	select {
	case l.entries <- entry:
	default:
		metrics.AuditDroppedTotal.Inc()
		logrus.Warnf("Audit queue full, dropping %s for %s %d", entry.Action, entry.EntityType, entry.EntityID)
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.entries {
		if err := l.repo.SaveAuditEntry(context.Background(), entry); err != nil {
			logrus.Errorf("Failed to save audit entry %s for %s %d: %v", entry.Action, entry.EntityType, entry.EntityID, err)
		}
	}
}

// Close stops accepting entries and waits for queued ones to be written
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.entries)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit logger drain: %w", ctx.Err())
	}
}
