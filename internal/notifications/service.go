package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldsync/internal/config"
)

const userAgent = "fieldsync/0.1"

// Event identifies a notification type.
type Event string

const (
	EventSyncCompleted Event = "sync_completed"
	EventDeadLetters   Event = "dead_letters"
	EventTest          Event = "test"
)

// Payload carries event fields. Keys used per event:
//
//	sync_completed: succeeded, failed (int), duration (time.Duration)
//	dead_letters:   count (int), error (string, optional)
type Payload map[string]any

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service when a topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	minItems := cfg.Notifications.SyncMinItems
	if minItems < 1 {
		minItems = 1
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		sync:         cfg.Notifications.Sync,
		deadLetters:  cfg.Notifications.DeadLetters,
		syncMinItems: minItems,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	sync         bool
	deadLetters  bool
	syncMinItems int
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format reports false for disabled or below-threshold events.
func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventSyncCompleted:
		succeeded := intValue(payload, "succeeded")
		failed := intValue(payload, "failed")
		if !n.sync || succeeded < n.syncMinItems {
			return message{}, false
		}
		body := fmt.Sprintf("Synced %d queued actions", succeeded)
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body += " in " + d.Round(time.Second).String()
		}
		if failed > 0 {
			body += fmt.Sprintf("; %d still queued", failed)
		}
		return message{
			title: "fieldsync - Synced",
			body:  body,
			tags:  []string{"fieldsync", "sync", "completed"},
		}, true
	case EventDeadLetters:
		count := intValue(payload, "count")
		if !n.deadLetters || count <= 0 {
			return message{}, false
		}
		body := fmt.Sprintf("%d queued actions were parked after repeated failures", count)
		if reason := strings.TrimSpace(stringValue(payload, "error")); reason != "" {
			body += "\nLast error: " + reason
		}
		body += "\nReview with `fieldsync queue dead`"
		return message{
			title:    "fieldsync - Dead Letters",
			body:     body,
			tags:     []string{"fieldsync", "queue", "warning"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "fieldsync - Test",
			body:     "Notification system test",
			tags:     []string{"fieldsync", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
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

func intValue(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func stringValue(payload Payload, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
