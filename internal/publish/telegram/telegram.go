// Package telegram publishes media to a Telegram channel via the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"github.com/Mohammedalilgrh/smm-manage-pc/internal/config"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/media"
	"github.com/Mohammedalilgrh/smm-manage-pc/internal/publish"
)

// sender is the slice of telebot the adapter needs; tests swap it out.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Adapter sends videos with sendVideo and reports the public t.me link.
type Adapter struct {
	cfg     config.TelegramConfig
	bot     sender
	fetcher media.Fetcher
	log     zerolog.Logger
}

// New builds the adapter. The bot is constructed offline; no network
// call happens until the first publish.
func New(cfg config.TelegramConfig, fetcher media.Fetcher, log zerolog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.BotToken,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Adapter{cfg: cfg, bot: bot, fetcher: fetcher, log: log}, nil
}

// Publish implements publish.Adapter.
func (a *Adapter) Publish(ctx context.Context, req publish.Request) publish.Result {
	body, name, err := a.fetcher.Fetch(ctx, req.MediaRef)
	if err != nil {
		return publish.Failure(fmt.Sprintf("Telegram error: %v", err))
	}
	defer body.Close()

	video := &tele.Video{
		File:     tele.FromReader(body),
		Caption:  req.Caption,
		FileName: name,
	}
	msg, err := a.bot.Send(tele.ChatID(a.cfg.ChatID), video)
	if err != nil {
		a.log.Warn().Err(err).Str("media_ref", req.MediaRef).Msg("telegram send failed")
		return publish.Failure(fmt.Sprintf("Telegram error: %v", err))
	}

	url := MessageURL(a.cfg.ChannelUsername, msg.ID)
	a.log.Info().Str("url", url).Int("message_id", msg.ID).Msg("telegram posted")
	return publish.Result{
		Log:       publish.SuccessMarker + " Telegram posted",
		PostedURL: url,
	}
}

// MessageURL builds the public link for a channel message.
func MessageURL(channel string, messageID int) string {
	return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(channel, "@"), messageID)
}
