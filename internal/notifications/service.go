// Package notifications pushes operational alerts through ntfy. A noop
// implementation stands in when no topic is configured.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"crossdock/internal/config"
)

const userAgent = "Crossdock/0.1.0"

// Service defines the notification surface exposed to the engine and the
// offline replayer.
type Service interface {
	NotifyMisroute(ctx context.Context, awb, manifestCode, description string) error
	NotifyReplayCompleted(ctx context.Context, processed, failed int) error
	NotifyScanExhausted(ctx context.Context, awb string, attempts int, lastError string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		misroutes:     cfg.Notifications.Misroutes,
		offlineReplay: cfg.Notifications.OfflineReplay,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	misroutes     bool
	offlineReplay bool
}

func (n *ntfyService) NotifyMisroute(ctx context.Context, awb, manifestCode, description string) error {
	if !n.misroutes {
		return nil
	}
	data := payload{
		title:    "Crossdock - Misroute",
		message:  fmt.Sprintf("Shipment %s is not on manifest %s: %s", awb, manifestCode, description),
		tags:     []string{"crossdock", "misroute"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReplayCompleted(ctx context.Context, processed, failed int) error {
	if !n.offlineReplay {
		return nil
	}
	data := payload{
		title:   "Crossdock - Offline Replay",
		message: fmt.Sprintf("Replayed %d queued scan(s), %d moved to the failed set", processed, failed),
		tags:    []string{"crossdock", "offline", "replay"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyScanExhausted(ctx context.Context, awb string, attempts int, lastError string) error {
	if !n.offlineReplay {
		return nil
	}
	data := payload{
		title:    "Crossdock - Queued Scan Failed",
		message:  fmt.Sprintf("Scan for %s gave up after %d attempt(s): %s", awb, attempts, lastError),
		tags:     []string{"crossdock", "offline", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Crossdock - Test",
		message: "Notifications are working",
		tags:    []string{"crossdock", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyMisroute(context.Context, string, string, string) error { return nil }

func (noopService) NotifyReplayCompleted(context.Context, int, int) error { return nil }

func (noopService) NotifyScanExhausted(context.Context, string, int, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }

// NewNop returns a Service that discards every notification. Used in tests.
func NewNop() Service {
	return noopService{}
}
