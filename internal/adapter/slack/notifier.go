// Package slack implements the Slack OAuth v2 provider and an incoming
// webhook notifier for operator alerts.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/opsboard/internal/port/notifier"
)

const webhookTimeout = 10 * time.Second

// Notifier posts alerts to a Slack incoming webhook.
type Notifier struct {
	webhookURL func() string
	httpClient *http.Client
}

// NewNotifier creates a Slack notifier. webhookURL is consulted on every
// send so a vault reload takes effect without rebuilding the notifier.
func NewNotifier(webhookURL func() string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: webhookTimeout},
	}
}

func (n *Notifier) Name() string { return providerName }

// webhookMessage is the Block Kit payload accepted by incoming webhooks.
type webhookMessage struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n *Notifier) Send(ctx context.Context, notification notifier.Notification) error {
	endpoint := n.webhookURL()
	if endpoint == "" {
		return notifier.ErrNotConfigured
	}

	header := fmt.Sprintf("%s %s", levelEmoji(notification.Level), notification.Title)
	msg := webhookMessage{
		Text: header,
		Blocks: []block{
			{Type: "header", Text: &text{Type: "plain_text", Text: header}},
			{Type: "section", Text: &text{Type: "mrkdwn", Text: notification.Message}},
		},
	}
	if notification.Source != "" {
		msg.Blocks = append(msg.Blocks, block{
			Type:     "context",
			Elements: []text{{Type: "mrkdwn", Text: fmt.Sprintf("_Event: %s_", notification.Source)}},
		})
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("slack webhook %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func levelEmoji(level string) string {
	switch level {
	case "success":
		return ":white_check_mark:"
	case "error":
		return ":rotating_light:"
	case "warning":
		return ":warning:"
	default:
		return ":information_source:"
	}
}
