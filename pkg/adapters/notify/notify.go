// Package notify provides ports.Notifier implementations that never leave the process.
package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/mesa/pkg/ports"
)

// Log writes every notification to a structured logger.
type Log struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*Log)(nil)

// NewLog creates a notifier that logs at INFO.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n ports.Notification) error {
	l.logger.InfoContext(ctx, "notification sent", "channel", n.Channel, "to", n.To, "body", n.Body)
	return nil
}

// Recorder keeps notifications in memory. Fail, when set, is returned instead of recording.
type Recorder struct {
	mu   sync.Mutex
	sent []ports.Notification
	Fail error
}

var _ ports.Notifier = (*Recorder)(nil)

func (r *Recorder) Notify(ctx context.Context, n ports.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail
	}
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []ports.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Notification(nil), r.sent...)
}
