// Package notify delivers operational notifications to every configured
// sink: the notification database, a message queue, and the process log.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/honeytrace/honeypot/internal/model"
)

type Sink interface {
	Name() string
	Deliver(ctx context.Context, n model.Notification) error
}

// Service fans a notification out to its sinks. It is safe for concurrent
// use as long as the sinks are.
type Service struct {
	logger *slog.Logger
	sinks  []Sink
}

func NewService(logger *slog.Logger, sinks ...Sink) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, sinks: sinks}
}

// Emit stamps the notification and delivers it to all sinks. A failing sink
// does not stop delivery to the others; all failures are joined.
func (s *Service) Emit(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	if n.Priority == 0 {
		n.Priority = model.PriorityFor(n.Type)
	}

	attrs := []any{
		"type", n.Type,
		"category", n.Category,
		"title", n.Title,
		"priority", n.Priority,
	}
	if n.SourceAddress != "" {
		attrs = append(attrs, "remote", n.SourceAddress, "protocol", n.Protocol)
	}
	s.logger.Info("notification", attrs...)

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
