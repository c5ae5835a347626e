package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/models"
)

// ErrNotFound is returned when a post id has no row.
var ErrNotFound = errors.New("post not found")

// Store wraps pgxpool for Postgres persistence. It is the only shared
// mutable resource in the system; MarkPosting and RecordResult are the
// two atomic mutation points everything else goes through.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreatePostParams collects inputs required to insert post rows.
type CreatePostParams struct {
	MediaRef      string
	Caption       string
	ScheduledTime time.Time
	Platforms     []string
}

// CreatePosts inserts one pending row per requested platform in a single
// transaction and returns the new rows in insertion order.
func (s *Store) CreatePosts(ctx context.Context, p CreatePostParams) ([]models.Post, error) {
	if len(p.Platforms) == 0 {
		return nil, errors.New("at least one platform is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	now := time.Now().UTC()
	posts := make([]models.Post, 0, len(p.Platforms))
	for _, platform := range p.Platforms {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO posts (media_ref, caption, scheduled_time, platform, status, log, posted_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, '', '', $6, $6)
			RETURNING id
		`, p.MediaRef, p.Caption, p.ScheduledTime, platform, models.StatusPending, now).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert post for %s: %w", platform, err)
		}
		posts = append(posts, models.Post{
			ID:            id,
			MediaRef:      p.MediaRef,
			Caption:       p.Caption,
			ScheduledTime: p.ScheduledTime,
			Platform:      platform,
			Status:        models.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return posts, nil
}

const postColumns = `id, media_ref, caption, scheduled_time, platform, status, log, posted_url, claimed_by, claimed_at, created_at, updated_at`

func scanPost(row pgx.Row) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.MediaRef, &p.Caption, &p.ScheduledTime, &p.Platform,
		&p.Status, &p.Log, &p.PostedURL, &p.ClaimedBy, &p.ClaimedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListDue returns pending posts whose scheduled time has passed, in
// ascending id order for reproducible claim order.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE status = $1 AND scheduled_time <= $2
		ORDER BY id ASC
	`, models.StatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("query due posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// MarkPosting atomically claims a single pending post. It returns false
// when the post is no longer pending, i.e. another cycle won the race.
// The status predicate makes this the sole mutual-exclusion point that
// prevents double dispatch.
func (s *Store) MarkPosting(ctx context.Context, id int64, claimedBy string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET status = $2, claimed_by = $3, claimed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $4
	`, id, models.StatusPosting, claimedBy, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("claim post %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordResult writes the terminal status and output fields. The write is
// a plain overwrite keyed by id, so repeating it with the same arguments
// is idempotent.
func (s *Store) RecordResult(ctx context.Context, id int64, status, log, postedURL string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET status = $2, log = $3, posted_url = $4, updated_at = NOW()
		WHERE id = $1
	`, id, status, log, postedURL)
	if err != nil {
		return fmt.Errorf("record result for post %d: %w", id, err)
	}
	return nil
}

// ReclaimStuck returns posts stuck in posting longer than timeout back to
// pending. Callers gate this on a non-zero claim timeout; with the
// default configuration stuck posts stay stuck, matching the documented
// restart behavior.
func (s *Store) ReclaimStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts
		SET status = $1, claimed_by = NULL, claimed_at = NULL, updated_at = NOW()
		WHERE status = $2 AND claimed_at IS NOT NULL AND claimed_at < NOW() - make_interval(secs => $3)
	`, models.StatusPending, models.StatusPosting, timeout.Seconds())
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck posts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetPost fetches a post by id.
func (s *Store) GetPost(ctx context.Context, id int64) (models.Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `
		SELECT `+postColumns+` FROM posts WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("scan post: %w", err)
	}
	return p, nil
}

// ListPosts returns posts most-recent-first for dashboard display.
func (s *Store) ListPosts(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+postColumns+` FROM posts ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// AppendAudit adds an audit row.
func (s *Store) AppendAudit(ctx context.Context, postID int64, event, detail string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (post_id, event, detail, ts)
		VALUES ($1, $2, $3, NOW())
	`, postID, event, detail)
	return err
}
