// Package service contains the credential broker's application services.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Strob0t/opsboard/internal/port/notifier"
)

// Alert sources raised by the broker. They double as the keys of the
// alerts.events allow-list.
const (
	AlertConnectionFailed = "connection.failed"
	AlertRefreshFailed    = "refresh.failed"
)

const notifyTimeout = 10 * time.Second

// NotificationService dispatches operator alerts to all registered notifiers.
type NotificationService struct {
	notifiers     []notifier.Notifier
	enabledEvents map[string]bool
}

// NewNotificationService creates a NotificationService with the given notifiers
// and list of enabled sources (e.g. "connection.failed").
// If enabledEvents is nil or empty, all sources are enabled.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	return &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
	}
}

// Notify sends a notification to all registered notifiers.
// Errors are logged but do not interrupt delivery to other notifiers. The
// caller's cancellation is detached so an alert outlives the HTTP request
// that raised it, bounded by its own timeout.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if s == nil || (len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source]) {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	for _, provider := range s.notifiers {
		err := provider.Send(ctx, n)
		switch {
		case errors.Is(err, notifier.ErrNotConfigured):
			slog.Debug("notifier not configured, alert skipped", "provider", provider.Name(), "source", n.Source)
		case err != nil:
			slog.Warn("notification send failed",
				"provider", provider.Name(),
				"title", n.Title,
				"error", err,
			)
		default:
			slog.Debug("notification sent", "provider", provider.Name(), "title", n.Title)
		}
	}
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}
