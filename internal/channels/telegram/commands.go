package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// handleBotCommand intercepts known slash commands. Returns true if the
// message was handled and must not reach the query pipeline.
func (c *Channel) handleBotCommand(ctx context.Context, msg *telego.Message) bool {
	if len(msg.Text) == 0 || msg.Text[0] != '/' {
		return false
	}

	// Strip arguments and a possible @botname suffix.
	cmd := strings.SplitN(msg.Text, " ", 2)[0]
	cmd = strings.SplitN(cmd, "@", 2)[0]
	cmd = strings.ToLower(cmd)

	switch cmd {
	case "/start":
		c.send(ctx, msg.Chat.ID,
			"Hi! Send me voice notes and I'll keep them as journal entries.\n"+
				"Ask me anything in plain text, like \"what did I say today?\" or "+
				"\"what were my thoughts on the move?\"")
		return true

	case "/help":
		c.send(ctx, msg.Chat.ID,
			"Voice note: transcribed and saved as a journal entry.\n"+
				"Plain text: answered from your past entries.\n\n"+
				"Commands:\n"+
				"/stats — journal size and time span\n"+
				"/help — this message")
		return true

	case "/stats":
		c.sendStats(ctx, msg.Chat.ID)
		return true
	}

	return false
}

func (c *Channel) sendStats(ctx context.Context, chatID int64) {
	if c.stats == nil {
		c.send(ctx, chatID, "Stats are not available right now.")
		return
	}

	count, err := c.stats.Count(ctx)
	if err != nil {
		c.send(ctx, chatID, "Stats are not available right now.")
		return
	}
	if count == 0 {
		c.send(ctx, chatID, "The journal is empty. Send a voice note to get started.")
		return
	}

	oldest, newest, err := c.stats.Span(ctx)
	if err != nil {
		c.send(ctx, chatID, fmt.Sprintf("Entries: %d", count))
		return
	}

	c.send(ctx, chatID, fmt.Sprintf("Entries: %d\nFirst: %s\nLatest: %s",
		count,
		time.Unix(oldest, 0).In(c.loc).Format("02 Jan 2006"),
		time.Unix(newest, 0).In(c.loc).Format("02 Jan 2006")))
}

// SyncMenuCommands publishes the command menu to Telegram.
func (c *Channel) SyncMenuCommands(ctx context.Context) error {
	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: []telego.BotCommand{
			{Command: "start", Description: "What this bot does"},
			{Command: "help", Description: "How to use the journal"},
			{Command: "stats", Description: "Journal size and time span"},
		},
		Scope: tu.ScopeAllPrivateChats(),
	})
}
