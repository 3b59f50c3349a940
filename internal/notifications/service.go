package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mailreel/internal/config"
)

const userAgent = "mailreel/0.1.0"

// Event names a notification kind.
type Event string

const (
	EventBatchCompleted Event = "batch_completed"
	EventItemFailed     Event = "item_failed"
	EventTest           Event = "test"
)

// Payload carries event specific values.
type Payload map[string]any

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventBatchCompleted: cfg.Notifications.BatchCompleted,
			EventItemFailed:     cfg.Notifications.ItemFailed,
			EventTest:           true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventBatchCompleted:
		succeeded := intValue(data["succeeded"])
		failed := intValue(data["failed"])
		skipped := intValue(data["skipped"])
		duration := durationText(data["duration"])
		title := "mailreel - Batch Complete"
		message := fmt.Sprintf("🎬 %d clips ready in %s", succeeded, duration)
		if failed > 0 {
			title = "mailreel - Batch Complete (with errors)"
			message = fmt.Sprintf("🎬 %d clips ready, %d failed in %s", succeeded, failed, duration)
		}
		if skipped > 0 {
			message = fmt.Sprintf("%s (%d already converted)", message, skipped)
		}
		return payload{title: title, message: message, tags: []string{"mailreel", "batch", "completed"}}, true
	case EventItemFailed:
		var builder strings.Builder
		builder.WriteString("❌ Clip failed")
		if id := stringValue(data["messageId"]); id != "" {
			builder.WriteString(" for ")
			builder.WriteString(id)
		}
		if kind := stringValue(data["errorKind"]); kind != "" {
			builder.WriteString(" (")
			builder.WriteString(kind)
			builder.WriteString(")")
		}
		builder.WriteString(": ")
		if errText := stringValue(data["error"]); errText != "" {
			builder.WriteString(errText)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "mailreel - Clip Failed",
			message:  builder.String(),
			tags:     []string{"mailreel", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "mailreel - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"mailreel", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case error:
		return strings.TrimSpace(val.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func intValue(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	default:
		return 0
	}
}

func durationText(v any) string {
	d, _ := v.(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
