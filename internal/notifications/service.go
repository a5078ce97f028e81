package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shelfcast/internal/config"
)

const userAgent = "shelfcast-notify"

// Event identifies a notification kind.
type Event string

const (
	EventTransferCompleted Event = "transfer_completed"
	EventTransferFailed    Event = "transfer_failed"
	EventBatchCompleted    Event = "batch_completed"
	EventTest              Event = "test"
)

// Payload carries the values substituted into an event message.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	userAgent string
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventTransferCompleted:
		title := payload.text("title")
		files := payload.number("files")
		body := fmt.Sprintf("📚 Downloaded: %s", title)
		if files > 1 {
			body = fmt.Sprintf("%s (%d files)", body, files)
		}
		return message{
			title: "Shelfcast - Download Complete",
			body:  body,
			tags:  []string{"shelfcast", "transfer", "completed"},
		}, true
	case EventTransferFailed:
		body := fmt.Sprintf("❌ Download failed: %s", payload.text("title"))
		if reason := payload.text("error"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title:    "Shelfcast - Download Failed",
			body:     body,
			tags:     []string{"shelfcast", "transfer", "error"},
			priority: "high",
		}, true
	case EventBatchCompleted:
		completed := payload.number("completed")
		failed := payload.number("failed")
		elapsed := payload.duration("duration").Round(time.Second)
		title := "Shelfcast - Batch Complete"
		body := fmt.Sprintf("%d books downloaded in %s", completed, elapsed)
		if failed > 0 {
			title = "Shelfcast - Batch Complete (with errors)"
			body = fmt.Sprintf("%d downloaded, %d failed in %s", completed, failed, elapsed)
		}
		return message{
			title: title,
			body:  body,
			tags:  []string{"shelfcast", "batch", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "Shelfcast - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"shelfcast", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) number(key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func (p Payload) duration(key string) time.Duration {
	if p == nil {
		return 0
	}
	if d, ok := p[key].(time.Duration); ok && d > 0 {
		return d
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
