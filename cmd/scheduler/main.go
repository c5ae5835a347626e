package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/config"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/dispatch"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/media"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish/browser"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish/telegram"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish/youtube"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/scheduler"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/store"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/telemetry"
)

func main() {
	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "scheduler").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	fetcher, err := buildFetcher(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init media fetcher")
	}

	registry, err := buildRegistry(cfg, fetcher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build adapter registry")
	}
	log.Info().Strs("platforms", registry.Platforms()).Msg("adapter registry ready")

	dispatcher := dispatch.New(registry, st, log)
	sched := scheduler.New(st, dispatcher, log, scheduler.Options{
		PollInterval: cfg.PollInterval,
		Concurrency:  cfg.DispatchConcurrency,
		ClaimTimeout: cfg.ClaimTimeout,
	})

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("scheduler stopped")
	}
}

func buildFetcher(ctx context.Context, cfg config.Config) (media.Fetcher, error) {
	if !cfg.Media.S3Enabled {
		return media.New(cfg.Media.Dir), nil
	}
	client, err := media.NewS3Client(ctx, cfg.Media.S3Region, cfg.Media.S3Endpoint, cfg.Media.S3PathStyle)
	if err != nil {
		return nil, err
	}
	return media.New(cfg.Media.Dir, media.WithS3Client(client)), nil
}

// buildRegistry registers an adapter for every platform with usable
// configuration. An unconfigured platform stays unregistered; jobs for
// it finalize with an unknown-platform failure instead of hanging.
func buildRegistry(cfg config.Config, fetcher media.Fetcher, log zerolog.Logger) (*publish.Registry, error) {
	adapters := make(map[string]publish.Adapter)

	if cfg.Platforms.Telegram.BotToken != "" {
		tg, err := telegram.New(cfg.Platforms.Telegram, fetcher, log)
		if err != nil {
			return nil, err
		}
		adapters["telegram"] = tg
	}
	if cfg.Platforms.YouTube.RefreshToken != "" {
		adapters["youtube"] = youtube.New(cfg.Platforms.YouTube, fetcher, log)
	}
	if cfg.Platforms.Instagram.AutomationPath != "" {
		adapters["instagram"] = browser.NewInstagram(cfg.Platforms.Instagram, log)
	}
	if cfg.Platforms.TikTok.AutomationPath != "" {
		adapters["tiktok"] = browser.NewTikTok(cfg.Platforms.TikTok, log)
	}

	return publish.NewRegistry(adapters), nil
}
