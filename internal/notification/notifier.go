// Package notification delivers alerts for high-impact insights to external
// channels (webhooks, Telegram) or the log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trading-insights/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// LevelFor maps an insight impact onto an alert level.
func LevelFor(impact model.Impact) AlertLevel {
	switch impact {
	case model.ImpactCritical:
		return AlertCritical
	case model.ImpactHigh:
		return AlertWarning
	default:
		return AlertInfo
	}
}

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel     `json:"level"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Insight *model.Insight `json:"insight,omitempty"`
}

// AlertFor builds the alert for an insight.
func AlertFor(in model.Insight) Alert {
	return Alert{
		Level: LevelFor(in.Impact),
		Title: fmt.Sprintf("%s %s (%s)", in.Symbol, in.Pattern, in.Impact),
		Message: fmt.Sprintf("%s Confidence %.0f%%. Suggested action: %s.",
			in.Reason, in.Confidence*100, in.SuggestedAction),
		Insight: &in,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts (useful for development).
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: slog.Default().With("component", "notify")}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	n.log.Info("alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// Multi sends every alert to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
