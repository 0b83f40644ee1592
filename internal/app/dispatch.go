package app

import (
	"context"
	"strings"

	"gatebot/internal/state"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

// dispatch consumes the transport update stream until the context ends.
func (a *App) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-a.updates:
			if !ok {
				return
			}
			switch up.Kind {
			case kit.UpdateMessage:
				a.handleMessage(ctx, up.Message)
			case kit.UpdateCallback:
				a.handleCallback(ctx, up.Callback)
			}
		}
	}
}

func (a *App) handleMessage(ctx context.Context, msg *kit.Message) {
	if msg == nil {
		return
	}

	// Title-change service messages are churn from the weather titler; remove
	// them. Needs can_delete_messages in the chat.
	if msg.NewChatTitle != "" {
		ref := kit.MessageRef{ChatID: msg.ChatID, MessageID: msg.ID}
		if err := a.bot.DeleteMessage(ctx, ref); err != nil {
			a.log.Warn("title service message delete failed", logx.Err(err))
		}
		return
	}

	if cmd, args, ok := parseCommand(msg.Text); ok {
		a.handleCommand(ctx, msg, cmd, args)
		return
	}
	if msg.IsPrivate {
		a.pipe.HandleMessage(ctx, msg)
	}
}

func (a *App) handleCommand(ctx context.Context, msg *kit.Message, cmd, args string) {
	inControl := msg.ChatID == a.controlChatID
	switch cmd {
	case "start":
		if inControl {
			a.mod.RefreshControl(ctx)
		} else if msg.IsPrivate {
			a.reply(ctx, msg, a.introText)
		}

	case "bumper_set":
		a.mod.BumperSet(ctx, msg, args)
	case "bumper_on":
		a.mod.BumperOn(ctx, msg)
	case "bumper_off":
		a.mod.BumperOff(ctx, msg)
	case "bumper_status":
		a.mod.BumperStatus(ctx, msg)

	case "daily_on":
		if inControl && a.mod.IsAdmin(ctx, msg.FromID) {
			if err := a.dly.SetEnabled(true); err != nil {
				a.log.Error("state save failed on daily toggle", logx.Err(err))
			}
			a.reply(ctx, msg, "Daily broadcasts enabled.")
		}
	case "daily_off":
		if inControl && a.mod.IsAdmin(ctx, msg.FromID) {
			if err := a.dly.SetEnabled(false); err != nil {
				a.log.Error("state save failed on daily toggle", logx.Err(err))
			}
			a.reply(ctx, msg, "Daily broadcasts disabled.")
		}
	case "daily_status":
		if inControl {
			a.reply(ctx, msg, a.dly.Status())
		}
	case "daily_set":
		if inControl && a.mod.IsAdmin(ctx, msg.FromID) {
			slot, text, _ := strings.Cut(args, " ")
			switch slot {
			case "morning":
				a.dly.SetTexts(text, "")
				a.reply(ctx, msg, "Morning text updated.")
			case "evening":
				a.dly.SetTexts("", text)
				a.reply(ctx, msg, "Evening text updated.")
			default:
				a.reply(ctx, msg, "Usage: /daily_set morning|evening <text>")
			}
		}

	case "weather_ping":
		if a.wx == nil {
			a.reply(ctx, msg, "Weather polling is disabled.")
			return
		}
		a.reply(ctx, msg, a.wx.Ping(ctx))
	}
}

func (a *App) handleCallback(ctx context.Context, cb *kit.Callback) {
	if cb == nil {
		return
	}
	if cb.ChatID != a.controlChatID {
		return
	}
	defer func() {
		if err := a.bot.AnswerCallback(ctx, cb.ID, ""); err != nil {
			a.log.Warn("callback answer failed", logx.Err(err))
		}
	}()

	switch cb.Data {
	case "allow", "deny":
		ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
		a.mod.Resolve(ctx, ref, cb.Data == "allow")
	case "set_" + string(state.ModeCheck):
		a.mod.SetMode(ctx, state.ModeCheck)
	case "set_" + string(state.ModeUncheck):
		a.mod.SetMode(ctx, state.ModeUncheck)
	}
}

func (a *App) reply(ctx context.Context, msg *kit.Message, text string) {
	if _, err := a.bot.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, text, nil); err != nil {
		a.log.Warn("reply failed", logx.Err(err))
	}
}

// parseCommand splits "/cmd@bot arg..." into its name and argument string.
func parseCommand(text string) (cmd, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if head == "" {
		return "", "", false
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return head, strings.TrimSpace(rest), true
}
