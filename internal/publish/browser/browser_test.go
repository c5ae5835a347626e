package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/config"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish"
)

func TestPublishSuccess(t *testing.T) {
	var gotName string
	var gotArgs []string
	a := NewInstagram(config.BrowserConfig{
		AutomationPath: "/usr/local/bin/ig-upload",
		ProfileDir:     "/var/profiles/ig",
		Timeout:        time.Minute,
	}, zerolog.Nop())
	a.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte("uploaded"), nil
	}

	res := a.Publish(context.Background(), publish.Request{MediaRef: "/data/uploads/clip.mp4", Caption: "hello"})

	if res.Failed() {
		t.Fatalf("expected success, got %q", res.Log)
	}
	if res.Log != "✅ Instagram posted" {
		t.Fatalf("unexpected log: %q", res.Log)
	}
	if res.PostedURL != "" {
		t.Fatalf("browser platforms produce no public link, got %q", res.PostedURL)
	}
	if gotName != "/usr/local/bin/ig-upload" {
		t.Fatalf("unexpected binary: %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"--platform instagram", "--media /data/uploads/clip.mp4", "--caption hello", "--profile-dir /var/profiles/ig"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestPublishRunFailure(t *testing.T) {
	a := NewTikTok(config.BrowserConfig{AutomationPath: "/usr/local/bin/tt-upload"}, zerolog.Nop())
	a.run = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: login wall detected")
	}

	res := a.Publish(context.Background(), publish.Request{MediaRef: "clip.mp4"})

	if !res.Failed() {
		t.Fatalf("expected failure, got %q", res.Log)
	}
	if !strings.Contains(res.Log, "TikTok error") || !strings.Contains(res.Log, "login wall") {
		t.Fatalf("unexpected failure log: %q", res.Log)
	}
	if res.PostedURL != "" {
		t.Fatalf("failed publish must not produce a URL")
	}
}

func TestPublishUnconfigured(t *testing.T) {
	a := NewInstagram(config.BrowserConfig{}, zerolog.Nop())

	res := a.Publish(context.Background(), publish.Request{MediaRef: "clip.mp4"})

	if !res.Failed() || !strings.Contains(res.Log, "not configured") {
		t.Fatalf("expected a not-configured failure, got %q", res.Log)
	}
}
