package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Strob0t/opsboard/internal/port/notifier"
)

// mockNotifier implements notifier.Notifier for testing.
type mockNotifier struct {
	mu      sync.Mutex
	name    string
	sent    []notifier.Notification
	sendErr error
}

func (m *mockNotifier) Name() string { return m.name }
func (m *mockNotifier) Send(_ context.Context, n notifier.Notification) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestNotificationService_Notify(t *testing.T) {
	m1 := &mockNotifier{name: "mock1"}
	m2 := &mockNotifier{name: "mock2"}
	svc := NewNotificationService([]notifier.Notifier{m1, m2}, nil)

	svc.Notify(context.Background(), notifier.Notification{
		Title:   "Slack connection failed",
		Message: "invalid_code",
		Level:   "error",
		Source:  AlertConnectionFailed,
	})

	if m1.count() != 1 {
		t.Fatalf("expected 1 notification on mock1, got %d", m1.count())
	}
	if m2.count() != 1 {
		t.Fatalf("expected 1 notification on mock2, got %d", m2.count())
	}
}

func TestNotificationService_FilterEvents(t *testing.T) {
	m := &mockNotifier{name: "mock"}
	svc := NewNotificationService([]notifier.Notifier{m}, []string{AlertRefreshFailed})

	svc.Notify(context.Background(), notifier.Notification{
		Title:  "filtered",
		Source: AlertConnectionFailed,
	})
	if m.count() != 0 {
		t.Fatalf("expected 0 notifications (filtered), got %d", m.count())
	}

	svc.Notify(context.Background(), notifier.Notification{
		Title:  "delivered",
		Source: AlertRefreshFailed,
	})
	if m.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", m.count())
	}
}

func TestNotificationService_ErrorContinues(t *testing.T) {
	unconfigured := &mockNotifier{name: "off", sendErr: notifier.ErrNotConfigured}
	failer := &mockNotifier{name: "fail", sendErr: errors.New("connection refused")}
	success := &mockNotifier{name: "ok"}
	svc := NewNotificationService([]notifier.Notifier{unconfigured, failer, success}, nil)

	svc.Notify(context.Background(), notifier.Notification{
		Title:  "Test",
		Source: AlertRefreshFailed,
	})

	if success.count() != 1 {
		t.Fatalf("expected 1 notification on success notifier, got %d", success.count())
	}
}

func TestNotificationService_CanceledCallerStillDelivers(t *testing.T) {
	m := &mockNotifier{name: "mock"}
	svc := NewNotificationService([]notifier.Notifier{m}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Notify(ctx, notifier.Notification{Title: "late", Source: AlertConnectionFailed})

	if m.count() != 1 {
		t.Fatalf("expected delivery after caller cancel, got %d", m.count())
	}
}

func TestNotificationService_NilIsNoop(t *testing.T) {
	var svc *NotificationService
	svc.Notify(context.Background(), notifier.Notification{Title: "x"})
}

func TestNotificationService_Count(t *testing.T) {
	svc := NewNotificationService([]notifier.Notifier{
		&mockNotifier{name: "a"},
		&mockNotifier{name: "b"},
	}, nil)
	if svc.NotifierCount() != 2 {
		t.Fatalf("expected 2, got %d", svc.NotifierCount())
	}
}
