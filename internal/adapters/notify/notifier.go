package notify

import (
	"context"
	"log/slog"

	"busboard/internal/ports"
)

// Log writes notifications to the structured log. Stands in for a real
// push or email channel; callers already treat notification failure as
// non-fatal, so swapping this adapter never changes pipeline behavior.
type Log struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*Log)(nil)

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (n *Log) RouteApproved(ctx context.Context, id, busNumber, from, to string) error {
	n.logger.Info("route contribution approved",
		"id", id, "bus", busNumber, "from", from, "to", to)
	return nil
}

func (n *Log) RouteRejected(ctx context.Context, id, reason string) error {
	n.logger.Info("route contribution rejected", "id", id, "reason", reason)
	return nil
}

func (n *Log) ImageApproved(ctx context.Context, id string) error {
	n.logger.Info("image contribution approved", "id", id)
	return nil
}

func (n *Log) ImageRejected(ctx context.Context, id, reason string) error {
	n.logger.Info("image contribution rejected", "id", id, "reason", reason)
	return nil
}
