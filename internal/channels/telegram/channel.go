// Package telegram is the bot transport: voice notes and questions come
// in, grounded answers go out. It only moves messages; all journal logic
// lives behind the bus.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/journalkit/voxlog/internal/bus"
)

const (
	// telegramMaxMessageLen stays under Telegram's 4096 hard limit.
	telegramMaxMessageLen = 4000

	voiceDownloadTimeout = 2 * time.Minute
)

// StatsProvider backs the /stats command.
type StatsProvider interface {
	Count(ctx context.Context) (int, error)
	Span(ctx context.Context) (oldest, newest int64, err error)
}

// Channel connects one Telegram bot to the message bus.
type Channel struct {
	bot     *telego.Bot
	bus     *bus.MessageBus
	allowed map[int64]bool // empty means open to everyone
	dedupe  *bus.DedupeCache
	stats   StatsProvider
	loc     *time.Location
	http    *http.Client
}

// New creates the channel. allowedUserIDs restricts who may talk to the
// bot; an empty list disables the check.
func New(token string, b *bus.MessageBus, allowedUserIDs []int64, stats StatsProvider, loc *time.Location) (*Channel, error) {
	bot, err := telego.NewBot(token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	allowed := make(map[int64]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = true
	}
	if loc == nil {
		loc = time.Local
	}

	return &Channel{
		bot:     bot,
		bus:     b,
		allowed: allowed,
		dedupe:  bus.NewDedupeCache(20*time.Minute, 5000),
		stats:   stats,
		loc:     loc,
		http:    &http.Client{Timeout: voiceDownloadTimeout},
	}, nil
}

// Run polls for updates and pumps the outbound queue until ctx is done.
func (c *Channel) Run(ctx context.Context) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	go c.outboundLoop(ctx)

	slog.Info("telegram channel started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				c.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (c *Channel) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.From == nil || msg.Chat.Type != telego.ChatTypePrivate {
		return
	}
	if len(c.allowed) > 0 && !c.allowed[msg.From.ID] {
		slog.Debug("ignoring message from unknown user", "user_id", msg.From.ID)
		return
	}

	messageID := fmt.Sprintf("tg:%d:%d", msg.Chat.ID, msg.MessageID)
	if c.dedupe.IsDuplicate(messageID) {
		return
	}

	inbound := bus.InboundMessage{
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: messageID,
		SenderID:  strconv.FormatInt(msg.From.ID, 10),
		SentAt:    msg.Date,
	}

	switch {
	case msg.Voice != nil:
		payload, err := c.downloadVoice(ctx, msg.Voice)
		if err != nil {
			slog.Warn("voice download failed", "message_id", messageID, "error", err)
			c.send(ctx, msg.Chat.ID, "I couldn't fetch that voice note, please send it again.")
			return
		}
		c.react(ctx, msg.Chat.ID, msg.MessageID, "\U0001F442") // ear: heard, processing
		inbound.Voice = payload
		c.bus.PublishInbound(inbound)

	case msg.Text != "":
		if c.handleBotCommand(ctx, msg) {
			return
		}
		inbound.Text = msg.Text
		c.bus.PublishInbound(inbound)
	}
}

// downloadVoice fetches the voice file through the bot file API.
func (c *Channel) downloadVoice(ctx context.Context, voice *telego.Voice) (*bus.VoicePayload, error) {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: voice.FileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	url := c.bot.FileDownloadURL(file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	mimeType := voice.MimeType
	if mimeType == "" {
		mimeType = "audio/ogg"
	}
	return &bus.VoicePayload{
		Audio:           audio,
		MIMEType:        mimeType,
		DurationSeconds: voice.Duration,
	}, nil
}

func (c *Channel) outboundLoop(ctx context.Context) {
	for {
		out, ok := c.bus.ConsumeOutbound(ctx)
		if !ok {
			return
		}
		chatID, err := strconv.ParseInt(out.ChatID, 10, 64)
		if err != nil {
			slog.Error("outbound message with bad chat id", "chat_id", out.ChatID)
			continue
		}
		for _, chunk := range chunkText(out.Text, telegramMaxMessageLen) {
			c.send(ctx, chatID, chunk)
		}
	}
}

func (c *Channel) send(ctx context.Context, chatID int64, text string) {
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		slog.Warn("send failed", "chat_id", chatID, "error", err)
	}
}

// react acknowledges a message with an emoji reaction; failures are
// cosmetic and only logged.
func (c *Channel) react(ctx context.Context, chatID int64, messageID int, emoji string) {
	err := c.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Reaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: emoji},
		},
	})
	if err != nil {
		slog.Debug("reaction failed", "chat_id", chatID, "error", err)
	}
}

// chunkText splits text into pieces below limit, preferring newline
// boundaries.
func chunkText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if text[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
