package events

import (
	"context"

	"golang.org/x/exp/slog"
)

type logProducer struct {
	logger *slog.Logger
}

// NewLogProducer returns a Producer that writes each event to the given logger, for
// use when no message broker is configured
func NewLogProducer(logger *slog.Logger) Producer {
	return &logProducer{logger: logger}
}

func (l *logProducer) Send(ctx context.Context, ev Event) error {
	l.logger.Info("Auth event",
		"eventType", ev.Type,
		"profile", ev.Profile,
		"session", ev.Session,
		"user", ev.User,
		"timestamp", ev.Timestamp,
	)
	return nil
}
