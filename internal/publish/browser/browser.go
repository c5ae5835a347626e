// Package browser publishes through platforms that have no usable API by
// driving an external browser-automation command against a logged-in
// Chrome profile. Instagram and TikTok share the runner; only the
// platform label, configuration section, and upload entry point differ.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/config"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish"
)

// runCommand is swapped in tests to avoid spawning real processes.
type runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)

// Adapter shells out to an automation binary. The binary receives the
// platform, profile directory, media path, and caption as flags and is
// expected to exit non-zero on failure with diagnostics on stderr.
type Adapter struct {
	platform string
	cfg      config.BrowserConfig
	log      zerolog.Logger
	run      runCommand
}

// NewInstagram builds the Instagram adapter.
func NewInstagram(cfg config.BrowserConfig, log zerolog.Logger) *Adapter {
	return newAdapter("Instagram", cfg, log)
}

// NewTikTok builds the TikTok adapter.
func NewTikTok(cfg config.BrowserConfig, log zerolog.Logger) *Adapter {
	return newAdapter("TikTok", cfg, log)
}

func newAdapter(platform string, cfg config.BrowserConfig, log zerolog.Logger) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	return &Adapter{
		platform: platform,
		cfg:      cfg,
		log:      log,
		run:      runExec,
	}
}

// Publish implements publish.Adapter. Browser-driven platforms expose no
// stable public link for fresh uploads, so the posted URL stays empty on
// success, as the panel always reported for these platforms.
func (a *Adapter) Publish(ctx context.Context, req publish.Request) publish.Result {
	if strings.TrimSpace(a.cfg.AutomationPath) == "" {
		return publish.Failure(fmt.Sprintf("%s error: automation binary not configured", a.platform))
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	args := []string{
		"--platform", strings.ToLower(a.platform),
		"--media", req.MediaRef,
		"--caption", req.Caption,
	}
	if a.cfg.ProfileDir != "" {
		args = append(args, "--profile-dir", a.cfg.ProfileDir)
	}

	out, err := a.run(ctx, a.cfg.AutomationPath, args...)
	if err != nil {
		a.log.Warn().Err(err).Str("platform", a.platform).Str("media_ref", req.MediaRef).Msg("automation run failed")
		return publish.Failure(fmt.Sprintf("%s error: %v", a.platform, err))
	}

	if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
		a.log.Debug().Str("platform", a.platform).Str("output", trimmed).Msg("automation output")
	}
	a.log.Info().Str("platform", a.platform).Str("media_ref", req.MediaRef).Msg("automation run completed")
	return publish.Result{Log: fmt.Sprintf("%s %s posted", publish.SuccessMarker, a.platform)}
}

func runExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", err, msg)
	}
	return out.Bytes(), nil
}
