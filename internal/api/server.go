// Package api exposes the intake and dashboard-query HTTP surface. It is
// an external collaborator of the scheduler core: intake creates pending
// rows, queries read them, and nothing here touches the claim path.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/config"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/models"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/store"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/telemetry"
)

// PostStore is the slice of the job store the API uses.
type PostStore interface {
	CreatePosts(ctx context.Context, p store.CreatePostParams) ([]models.Post, error)
	ListPosts(ctx context.Context, limit int) ([]models.Post, error)
	GetPost(ctx context.Context, id int64) (models.Post, error)
}

// Limiter is satisfied by ratelimit.TokenBucket; nil disables limiting.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, float64, error)
}

// Server wires HTTP handlers for intake and dashboard queries.
type Server struct {
	cfg       config.Config
	store     PostStore
	limiter   Limiter
	platforms []string
	log       zerolog.Logger
}

// New constructs the API server. platforms lists the identifiers the
// registry accepts, used only to reject obvious typos at intake; the
// dispatcher remains the authority on resolution.
func New(cfg config.Config, st PostStore, limiter Limiter, platforms []string, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		limiter:   limiter,
		platforms: platforms,
		log:       log,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/posts", s.handleCreate)
	r.Get("/posts", s.handleList)
	r.Get("/posts/{id}", s.handleGet)
	return r
}

type createRequest struct {
	MediaRef      string    `json:"media_ref"`
	Caption       string    `json:"caption"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Platforms     []string  `json:"platforms"`
}

type createResponse struct {
	Posts []models.Post `json:"posts"`
}

// handleCreate fans one upload out into one pending job per platform.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.MediaRef == "" {
		http.Error(w, "media_ref is required", http.StatusBadRequest)
		return
	}
	if len(req.Platforms) == 0 {
		http.Error(w, "at least one platform is required", http.StatusBadRequest)
		return
	}
	for _, p := range req.Platforms {
		if !s.knownPlatform(p) {
			http.Error(w, fmt.Sprintf("unknown platform %q", p), http.StatusBadRequest)
			return
		}
	}
	if req.ScheduledTime.IsZero() {
		req.ScheduledTime = time.Now()
	}

	tenant := tenantFromRequest(r)
	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), "rl:"+tenant)
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	posts, err := s.store.CreatePosts(r.Context(), store.CreatePostParams{
		MediaRef:      req.MediaRef,
		Caption:       req.Caption,
		ScheduledTime: req.ScheduledTime,
		Platforms:     req.Platforms,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	telemetry.IntakeCounter.Add(float64(len(posts)))
	s.log.Info().
		Str("tenant", tenant).
		Str("media_ref", req.MediaRef).
		Int("jobs", len(posts)).
		Msg("posts scheduled")

	writeJSON(w, http.StatusAccepted, createResponse{Posts: posts})
}

// handleList returns all jobs most-recent-first for dashboard display.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.ListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	posts, err := s.store.ListPosts(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list posts", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	post, err := s.store.GetPost(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to load post", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) knownPlatform(platform string) bool {
	if len(s.platforms) == 0 {
		return true
	}
	for _, p := range s.platforms {
		if p == platform {
			return true
		}
	}
	return false
}

func tenantFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Tenant-ID"); v != "" {
		return v
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
