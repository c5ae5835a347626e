package telegram

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/config"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish"
)

type fakeFetcher struct {
	err error
}

func (f fakeFetcher) Fetch(_ context.Context, ref string) (io.ReadCloser, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return io.NopCloser(strings.NewReader("video-bytes")), "clip.mp4", nil
}

type fakeSender struct {
	msg  *tele.Message
	err  error
	sent []interface{}
}

func (f *fakeSender) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.sent = append(f.sent, what)
	return f.msg, f.err
}

func newTestAdapter(bot sender, fetcher fakeFetcher) *Adapter {
	return &Adapter{
		cfg: config.TelegramConfig{
			BotToken:        "123:abc",
			ChatID:          -100123,
			ChannelUsername: "mychannel",
		},
		bot:     bot,
		fetcher: fetcher,
		log:     zerolog.Nop(),
	}
}

func TestPublishSuccess(t *testing.T) {
	bot := &fakeSender{msg: &tele.Message{ID: 42}}
	a := newTestAdapter(bot, fakeFetcher{})

	res := a.Publish(context.Background(), publish.Request{MediaRef: "uploads/clip.mp4", Caption: "hello"})

	if res.Failed() {
		t.Fatalf("expected success, got %q", res.Log)
	}
	if !strings.HasPrefix(res.Log, "✅") {
		t.Fatalf("success log must start with the success marker, got %q", res.Log)
	}
	pattern := regexp.MustCompile(`^https://t\.me/[^/]+/\d+$`)
	if !pattern.MatchString(res.PostedURL) {
		t.Fatalf("posted URL %q does not match t.me message link", res.PostedURL)
	}
	if res.PostedURL != "https://t.me/mychannel/42" {
		t.Fatalf("unexpected url: %q", res.PostedURL)
	}

	if len(bot.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(bot.sent))
	}
	video, ok := bot.sent[0].(*tele.Video)
	if !ok {
		t.Fatalf("expected a video send, got %T", bot.sent[0])
	}
	if video.Caption != "hello" || video.FileName != "clip.mp4" {
		t.Fatalf("unexpected video: caption=%q filename=%q", video.Caption, video.FileName)
	}
}

func TestPublishSendError(t *testing.T) {
	bot := &fakeSender{err: errors.New("bad request: chat not found")}
	a := newTestAdapter(bot, fakeFetcher{})

	res := a.Publish(context.Background(), publish.Request{MediaRef: "uploads/clip.mp4"})

	if !res.Failed() {
		t.Fatalf("expected failure, got %q", res.Log)
	}
	if !strings.Contains(res.Log, "chat not found") {
		t.Fatalf("failure log should carry the platform error, got %q", res.Log)
	}
	if res.PostedURL != "" {
		t.Fatalf("failed publish must not produce a URL")
	}
}

func TestPublishFetchError(t *testing.T) {
	bot := &fakeSender{msg: &tele.Message{ID: 1}}
	a := newTestAdapter(bot, fakeFetcher{err: errors.New("open media uploads/missing.mp4: no such file")})

	res := a.Publish(context.Background(), publish.Request{MediaRef: "uploads/missing.mp4"})

	if !res.Failed() || res.PostedURL != "" {
		t.Fatalf("expected failure with empty URL, got %+v", res)
	}
	if len(bot.sent) != 0 {
		t.Fatalf("nothing should be sent when the media is unreadable")
	}
}

func TestMessageURL(t *testing.T) {
	if got := MessageURL("mychannel", 7); got != "https://t.me/mychannel/7" {
		t.Fatalf("unexpected url: %q", got)
	}
	// A leading @ in config should not leak into the link.
	if got := MessageURL("@mychannel", 7); got != "https://t.me/mychannel/7" {
		t.Fatalf("unexpected url: %q", got)
	}
}
