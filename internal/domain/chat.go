package domain

import "time"

// Chat is a Telegram chat the bot has seen a message from.
type Chat struct {
	ChatID    int64
	Title     string
	Type      string // group, supergroup, private, channel
	UpdatedAt time.Time
}

func (c *Chat) IsGroup() bool {
	return c.Type == "group" || c.Type == "supergroup"
}
