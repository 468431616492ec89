package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storyboard/internal/config"
	"storyboard/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "image batch"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func captureServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestImageBatchNotificationFormats(t *testing.T) {
	var requests []captured
	server := captureServer(t, &requests)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Images = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyImageBatchCompleted(context.Background(), "proj-1", 5, 0, 90*time.Second); err != nil {
		t.Fatalf("NotifyImageBatchCompleted: %v", err)
	}
	if err := svc.NotifyImageBatchCompleted(context.Background(), "proj-1", 3, 2, time.Minute); err != nil {
		t.Fatalf("NotifyImageBatchCompleted: %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("got %d requests, want 2", len(requests))
	}
	if requests[0].title != "Storyboard - Images Complete" {
		t.Fatalf("unexpected title %q", requests[0].title)
	}
	if !strings.Contains(requests[0].body, "5 scenes done in 1m30s") {
		t.Fatalf("unexpected body %q", requests[0].body)
	}
	if !strings.Contains(requests[1].title, "with errors") {
		t.Fatalf("unexpected title %q", requests[1].title)
	}
	if !strings.Contains(requests[1].body, "3 succeeded, 2 failed") {
		t.Fatalf("unexpected body %q", requests[1].body)
	}
}

func TestErrorNotificationUsesHighPriority(t *testing.T) {
	var requests []captured
	server := captureServer(t, &requests)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyError(context.Background(), errors.New("database locked"), "version save"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(requests))
	}
	if requests[0].priority != "high" {
		t.Fatalf("priority = %q, want high", requests[0].priority)
	}
	if !strings.Contains(requests[0].body, "version save") || !strings.Contains(requests[0].body, "database locked") {
		t.Fatalf("unexpected body %q", requests[0].body)
	}
}

func TestDisabledEventClassesAreSuppressed(t *testing.T) {
	var requests []captured
	server := captureServer(t, &requests)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Prompts = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyPromptBatchCompleted(context.Background(), "proj-1", 4, 0); err != nil {
		t.Fatalf("NotifyPromptBatchCompleted: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("expected suppressed notification, got %d requests", len(requests))
	}
}

func TestNotifyErrorSurfacesServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyError(context.Background(), errors.New("boom"), ""); err == nil {
		t.Fatal("expected error for http 503")
	}
}
