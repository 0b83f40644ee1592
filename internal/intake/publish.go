package intake

import (
	"context"

	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

// Publish sends a payload to a channel, dispatching on its variant. Albums
// carry photos and videos in one media group; documents cannot travel in a
// group and go out individually. Errors are logged and swallowed: publication
// is best-effort.
func Publish(ctx context.Context, bot kit.Adapter, log logx.Logger, chatID int64, p Payload) {
	to := kit.ChatTarget{ChatID: chatID}
	switch v := p.(type) {
	case TextPayload:
		if _, err := bot.SendText(ctx, to, v.Text, nil); err != nil {
			log.Warn("publish text failed", logx.Int64("chat", chatID), logx.Err(err))
		}
	case PhotoPayload:
		if _, err := bot.SendMedia(ctx, to, kit.MediaPhoto, v.FileID, v.Caption); err != nil {
			log.Warn("publish photo failed", logx.Int64("chat", chatID), logx.Err(err))
		}
	case VideoPayload:
		if _, err := bot.SendMedia(ctx, to, kit.MediaVideo, v.FileID, v.Caption); err != nil {
			log.Warn("publish video failed", logx.Int64("chat", chatID), logx.Err(err))
		}
	case DocumentPayload:
		if _, err := bot.SendMedia(ctx, to, kit.MediaDocument, v.FileID, v.Caption); err != nil {
			log.Warn("publish document failed", logx.Int64("chat", chatID), logx.Err(err))
		}
	case GroupPayload:
		var album []kit.AlbumItem
		for _, it := range v.Items {
			switch it.Subtype {
			case "photo":
				album = append(album, kit.AlbumItem{Kind: kit.MediaPhoto, FileID: it.FileID, Caption: it.Caption})
			case "video":
				album = append(album, kit.AlbumItem{Kind: kit.MediaVideo, FileID: it.FileID, Caption: it.Caption})
			}
		}
		if len(album) > 0 {
			if err := bot.SendAlbum(ctx, to, album); err != nil {
				log.Warn("publish album failed", logx.Int64("chat", chatID), logx.Err(err))
			}
		}
		for _, it := range v.Items {
			if it.Subtype != "document" {
				continue
			}
			if _, err := bot.SendMedia(ctx, to, kit.MediaDocument, it.FileID, it.Caption); err != nil {
				log.Warn("publish album document failed", logx.Int64("chat", chatID), logx.Err(err))
			}
		}
	}
}
