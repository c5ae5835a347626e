package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/models"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish"
)

type recordedResult struct {
	Status    string
	Log       string
	PostedURL string
	Writes    int
}

type fakeStore struct {
	mu      sync.Mutex
	results map[int64]*recordedResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{results: make(map[int64]*recordedResult)}
}

func (f *fakeStore) RecordResult(_ context.Context, id int64, status, log, postedURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	if !ok {
		r = &recordedResult{}
		f.results[id] = r
	}
	r.Status, r.Log, r.PostedURL = status, log, postedURL
	r.Writes++
	return nil
}

func (f *fakeStore) AppendAudit(_ context.Context, _ int64, _, _ string) error { return nil }

func (f *fakeStore) result(t *testing.T, id int64) recordedResult {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	if !ok {
		t.Fatalf("no result recorded for post %d", id)
	}
	return *r
}

func job(id int64, platform string) models.Post {
	return models.Post{
		ID:            id,
		MediaRef:      "uploads/clip.mp4",
		Caption:       "hello",
		ScheduledTime: time.Now().Add(-time.Hour),
		Platform:      platform,
		Status:        models.StatusPosting,
	}
}

func TestExecuteSuccess(t *testing.T) {
	st := newFakeStore()
	reg := publish.NewRegistry(map[string]publish.Adapter{
		"telegram": publish.AdapterFunc(func(_ context.Context, req publish.Request) publish.Result {
			if req.MediaRef != "uploads/clip.mp4" || req.Caption != "hello" {
				t.Errorf("unexpected request: %+v", req)
			}
			return publish.Result{Log: "✅ Telegram posted", PostedURL: "https://t.me/mychannel/42"}
		}),
	})

	New(reg, st, zerolog.Nop()).Execute(context.Background(), job(1, "telegram"))

	got := st.result(t, 1)
	if got.Status != models.StatusPosted {
		t.Fatalf("expected posted, got %q", got.Status)
	}
	if got.Log != "✅ Telegram posted" || got.PostedURL != "https://t.me/mychannel/42" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestExecuteUnknownPlatform(t *testing.T) {
	st := newFakeStore()
	reg := publish.NewRegistry(nil)

	New(reg, st, zerolog.Nop()).Execute(context.Background(), job(7, "myspace"))

	got := st.result(t, 7)
	if got.Status != models.StatusPosted {
		t.Fatalf("unknown platform must still finalize to posted, got %q", got.Status)
	}
	if !strings.HasPrefix(got.Log, "❌") || !strings.Contains(got.Log, "myspace") {
		t.Fatalf("expected identifiable failure log, got %q", got.Log)
	}
	if got.PostedURL != "" {
		t.Fatalf("expected empty URL, got %q", got.PostedURL)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	st := newFakeStore()
	reg := publish.NewRegistry(map[string]publish.Adapter{
		"telegram": publish.AdapterFunc(func(_ context.Context, _ publish.Request) publish.Result {
			panic("nil pointer in adapter")
		}),
	})
	d := New(reg, st, zerolog.Nop())

	d.Execute(context.Background(), job(3, "telegram"))

	got := st.result(t, 3)
	if got.Status != models.StatusPosted {
		t.Fatalf("panicking adapter must still finalize to posted, got %q", got.Status)
	}
	if !strings.Contains(got.Log, "Exception") || got.PostedURL != "" {
		t.Fatalf("expected exception log with empty URL, got %+v", got)
	}

	// The dispatcher survives and processes the next job normally.
	reg2 := publish.NewRegistry(map[string]publish.Adapter{
		"telegram": publish.AdapterFunc(func(_ context.Context, _ publish.Request) publish.Result {
			return publish.Result{Log: "✅ Telegram posted", PostedURL: "https://t.me/mychannel/43"}
		}),
	})
	New(reg2, st, zerolog.Nop()).Execute(context.Background(), job(4, "telegram"))
	if got := st.result(t, 4); got.Log != "✅ Telegram posted" {
		t.Fatalf("expected subsequent job to succeed, got %+v", got)
	}
}

func TestExecuteConcurrentJobsDoNotInterfere(t *testing.T) {
	st := newFakeStore()
	release := make(chan struct{})
	reg := publish.NewRegistry(map[string]publish.Adapter{
		"telegram": publish.AdapterFunc(func(_ context.Context, _ publish.Request) publish.Result {
			<-release
			return publish.Result{Log: "✅ Telegram posted", PostedURL: "https://t.me/mychannel/42"}
		}),
		"youtube": publish.AdapterFunc(func(_ context.Context, _ publish.Request) publish.Result {
			<-release
			return publish.Result{Log: "✅ YouTube posted", PostedURL: "https://youtube.com/watch?v=abc123"}
		}),
	})
	d := New(reg, st, zerolog.Nop())

	var wg sync.WaitGroup
	for i, platform := range []string{"telegram", "youtube"} {
		wg.Add(1)
		go func(id int64, platform string) {
			defer wg.Done()
			d.Execute(context.Background(), job(id, platform))
		}(int64(i+1), platform)
	}
	close(release)
	wg.Wait()

	tg := st.result(t, 1)
	yt := st.result(t, 2)
	if tg.Log != "✅ Telegram posted" || tg.PostedURL != "https://t.me/mychannel/42" {
		t.Fatalf("telegram result corrupted: %+v", tg)
	}
	if yt.Log != "✅ YouTube posted" || yt.PostedURL != "https://youtube.com/watch?v=abc123" {
		t.Fatalf("youtube result corrupted: %+v", yt)
	}
}
