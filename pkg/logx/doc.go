// Package logx provides the bot's structured logging service.
//
// It wraps zerolog behind a small Logger facade so components do not depend on
// zerolog directly, and fans log lines out to the console, an optional file,
// and an optional rate-limited Telegram chat.
package logx
