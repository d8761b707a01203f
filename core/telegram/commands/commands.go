// Package commands describes slash commands registered with the bot.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command handler plus its menu metadata. Hidden and
// AdminOnly commands are left out of the Telegram command menu; Aliases are
// also matched when typed without a leading slash.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
