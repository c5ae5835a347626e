// Package youtube uploads videos through the YouTube Data API using an
// OAuth refresh token obtained out of band.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/config"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/media"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish"
)

const (
	defaultTokenURL  = "https://oauth2.googleapis.com/token"
	defaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"
)

// Adapter publishes videos as public uploads. The caption becomes both
// the title (truncated to the API's 100-char limit) and the description,
// mirroring how the panel's operators use captions.
type Adapter struct {
	cfg       config.YouTubeConfig
	client    *http.Client
	fetcher   media.Fetcher
	log       zerolog.Logger
	tokenURL  string
	uploadURL string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New builds the adapter.
func New(cfg config.YouTubeConfig, fetcher media.Fetcher, log zerolog.Logger) *Adapter {
	return &Adapter{
		cfg:       cfg,
		client:    &http.Client{Timeout: 10 * time.Minute},
		fetcher:   fetcher,
		log:       log,
		tokenURL:  defaultTokenURL,
		uploadURL: defaultUploadURL,
	}
}

// Publish implements publish.Adapter.
func (a *Adapter) Publish(ctx context.Context, req publish.Request) publish.Result {
	token, err := a.token(ctx)
	if err != nil {
		return publish.Failure(fmt.Sprintf("YouTube error: %v", err))
	}

	body, name, err := a.fetcher.Fetch(ctx, req.MediaRef)
	if err != nil {
		return publish.Failure(fmt.Sprintf("YouTube error: %v", err))
	}
	defer body.Close()

	videoID, err := a.upload(ctx, token, name, req.Caption, body)
	if err != nil {
		a.log.Warn().Err(err).Str("media_ref", req.MediaRef).Msg("youtube upload failed")
		return publish.Failure(fmt.Sprintf("YouTube error: %v", err))
	}

	watchURL := "https://youtube.com/watch?v=" + videoID
	a.log.Info().Str("url", watchURL).Msg("youtube posted")
	return publish.Result{
		Log:       publish.SuccessMarker + " YouTube posted",
		PostedURL: watchURL,
	}
}

// token exchanges the refresh token for an access token, caching it
// until shortly before expiry.
func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	form := url.Values{
		"client_id":     {a.cfg.ClientID},
		"client_secret": {a.cfg.ClientSecret},
		"refresh_token": {a.cfg.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("refresh token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	a.accessToken = payload.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	return a.accessToken, nil
}

// upload performs a multipart insert and returns the new video id.
func (a *Adapter) upload(ctx context.Context, token, filename, caption string, body io.Reader) (string, error) {
	meta := map[string]any{
		"snippet": map[string]any{
			"title":       truncate(caption, 100),
			"description": caption,
			"categoryId":  a.cfg.CategoryID,
		},
		"status": map[string]any{
			"privacyStatus": a.cfg.PrivacyStatus,
		},
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal snippet: %w", err)
	}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := metaPart.Write(metaJSON); err != nil {
		return "", fmt.Errorf("write metadata part: %w", err)
	}

	videoHeader := textproto.MIMEHeader{}
	videoHeader.Set("Content-Type", "video/*")
	videoPart, err := mw.CreatePart(videoHeader)
	if err != nil {
		return "", fmt.Errorf("create video part: %w", err)
	}
	if _, err := io.Copy(videoPart, body); err != nil {
		return "", fmt.Errorf("write video %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	endpoint := a.uploadURL + "?uploadType=multipart&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("upload video: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("upload response missing video id")
	}
	return payload.ID, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
