package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.MyChatMember != nil:
		// the bot was added to or removed from a chat
		b.rememberChat(ctx, &update.MyChatMember.Chat)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	b.rememberChat(ctx, msg.Chat)

	if strings.TrimSpace(msg.Text) == "" || !msg.IsCommand() {
		return
	}

	b.handleCommand(ctx, msg)
}
