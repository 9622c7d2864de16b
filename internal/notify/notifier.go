// Package notify delivers operator alerts about optimization runs to chat
// channels. Alerts can be filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// Event types an operator can subscribe to.
const (
	EventRunFailed        = "optimization_failed"
	EventCapacityExceeded = "capacity_exceeded"
	EventRunNoData        = "optimization_no_data"
	EventRunSucceeded     = "optimization_succeeded"
)

// Alert is one operator notification about a finished run.
type Alert struct {
	Event   string
	Title   string
	Summary domain.ResultSummary
}

// NewRunAlert builds the alert for a run summary.
func NewRunAlert(s domain.ResultSummary) Alert {
	event := RunEvent(s)
	return Alert{Event: event, Title: RunTitle(event, s.OrderID), Summary: s}
}

// Sender is one notification channel. Each sender renders the alert in its
// own markup.
type Sender interface {
	Send(ctx context.Context, a Alert) error
	// Name identifies the sender in logs, e.g. "telegram".
	Name() string
}

// Notifier dispatches alerts to every Sender. Only event types in the allowed
// set are forwarded; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// NotifyRun alerts about a finished run if its event type is allowed.
func (n *Notifier) NotifyRun(ctx context.Context, s domain.ResultSummary) error {
	return n.Notify(ctx, NewRunAlert(s))
}

// Notify delivers the alert to every sender if its event type is allowed.
func (n *Notifier) Notify(ctx context.Context, a Alert) error {
	if len(n.events) > 0 && !n.events[a.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", a.Event),
			slog.Int64("order_id", a.Summary.OrderID),
		)
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, a); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", a.Event),
				slog.Int64("order_id", a.Summary.OrderID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert sent",
			slog.String("sender", s.Name()),
			slog.String("event", a.Event),
			slog.Int64("order_id", a.Summary.OrderID),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// RunEvent maps a run summary to its event type.
func RunEvent(s domain.ResultSummary) string {
	switch {
	case s.Status == domain.StatusSuccess:
		return EventRunSucceeded
	case s.Status == domain.StatusNoData:
		return EventRunNoData
	case s.Message == domain.MsgTooMany:
		return EventCapacityExceeded
	default:
		return EventRunFailed
	}
}

// RunTitle renders the alert title for event.
func RunTitle(event string, orderID int64) string {
	switch event {
	case EventCapacityExceeded:
		return fmt.Sprintf("Order %d: too many combinations", orderID)
	case EventRunFailed:
		return fmt.Sprintf("Order %d: optimization failed", orderID)
	case EventRunNoData:
		return fmt.Sprintf("Order %d: no suitable products", orderID)
	default:
		return fmt.Sprintf("Order %d: optimized", orderID)
	}
}

// field is one labelled line of an alert body.
type field struct {
	name, value string
}

// runFields lists the summary facts every sender shows, in display order.
func runFields(s domain.ResultSummary) []field {
	out := []field{
		{"run", s.RunID},
		{"status", string(s.Status)},
	}
	if s.Message != "" {
		out = append(out, field{"message", s.Message})
	}
	if s.Engine != "" {
		out = append(out, field{"engine", s.Engine})
	}
	out = append(out, field{"combinations", fmt.Sprintf("%d", s.Combinations)})
	if s.Status == domain.StatusSuccess {
		out = append(out,
			field{"baskets", fmt.Sprintf("%d", s.Baskets)},
			field{"best total", fmt.Sprintf("%.2f", s.BestTotalCost)},
		)
	}
	if len(s.MissingMonoVendors) > 0 {
		out = append(out, field{"no single-vendor basket", strings.Join(s.MissingMonoVendors, ", ")})
	}
	return out
}
