package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyboard/internal/config"
)

const userAgent = "Storyboard-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyPromptBatchCompleted(ctx context.Context, projectID string, successful, failed int) error
	NotifyImageBatchCompleted(ctx context.Context, projectID string, successful, failed int, duration time.Duration) error
	NotifyVersionSaved(ctx context.Context, projectID string, versionNumber int, description string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewNop returns a notification service that discards every event.
func NewNop() Service {
	return noopService{}
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
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
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		sendPrompts: cfg.Notifications.Prompts,
		sendImages:  cfg.Notifications.Images,
		sendErrors:  cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	sendPrompts bool
	sendImages  bool
	sendErrors  bool
}

func (n *ntfyService) NotifyPromptBatchCompleted(ctx context.Context, projectID string, successful, failed int) error {
	if !n.sendPrompts {
		return nil
	}
	title := "Storyboard - Prompts Complete"
	message := fmt.Sprintf("Prompt generation for %s: %d scenes done", projectID, successful)
	if failed > 0 {
		title = "Storyboard - Prompts Complete (with errors)"
		message = fmt.Sprintf("Prompt generation for %s: %d succeeded, %d failed", projectID, successful, failed)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"storyboard", "prompts", "completed"},
	})
}

func (n *ntfyService) NotifyImageBatchCompleted(ctx context.Context, projectID string, successful, failed int, duration time.Duration) error {
	if !n.sendImages {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title, message string
	if failed == 0 {
		title = "Storyboard - Images Complete"
		message = fmt.Sprintf("Image generation for %s: %d scenes done in %s", projectID, successful, durationText)
	} else {
		title = "Storyboard - Images Complete (with errors)"
		message = fmt.Sprintf("Image generation for %s: %d succeeded, %d failed in %s", projectID, successful, failed, durationText)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"storyboard", "images", "completed"},
	})
}

func (n *ntfyService) NotifyVersionSaved(ctx context.Context, projectID string, versionNumber int, description string) error {
	message := fmt.Sprintf("Saved version %d of %s", versionNumber, projectID)
	if description = strings.TrimSpace(description); description != "" {
		message = fmt.Sprintf("%s: %s", message, description)
	}
	return n.send(ctx, payload{
		title:   "Storyboard - Version Saved",
		message: message,
		tags:    []string{"storyboard", "version", "saved"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.sendErrors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "Storyboard - Error",
		message:  builder.String(),
		tags:     []string{"storyboard", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Storyboard - Test",
		message:  "Notification system test",
		tags:     []string{"storyboard", "test"},
		priority: "low",
	})
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

type noopService struct{}

func (noopService) NotifyPromptBatchCompleted(context.Context, string, int, int) error { return nil }
func (noopService) NotifyImageBatchCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyVersionSaved(context.Context, string, int, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
