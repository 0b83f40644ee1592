package transport

import (
	"context"
	"time"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// Media describes the single attachment of an incoming message.
type Media struct {
	Kind     MediaKind
	FileID   string
	FileSize int64
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	FromFullName string
	Text         string
	Caption      string

	// AlbumID is the platform correlation id tying together parts of a
	// multi-part submission (empty for single messages).
	AlbumID string

	Media     *Media
	SentAt    time.Time
	IsPrivate bool

	// NewChatTitle is set on the service message emitted when a chat title
	// changes (the message carries no user content).
	NewChatTitle string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// AlbumItem is one member of an outgoing media group. Only photos and videos
// may travel in an album; documents are sent individually by the caller.
type AlbumItem struct {
	Kind    MediaKind
	FileID  string
	Caption string
}

type ChatAdmin struct {
	UserID   int64
	Username string
}

// Adapter is the narrow chat-platform surface the bot consumes. All sends are
// best-effort from the caller's perspective; errors are for logging only.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendMedia(ctx context.Context, to ChatTarget, kind MediaKind, fileID, caption string) (MessageRef, error)
	SendAlbum(ctx context.Context, to ChatTarget, items []AlbumItem) error
	SendPhotoBytes(ctx context.Context, to ChatTarget, png []byte, caption string) (MessageRef, error)
	CopyMessage(ctx context.Context, to ChatTarget, from MessageRef) (MessageRef, error)

	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	ClearReplyMarkup(ctx context.Context, ref MessageRef) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	PinMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error

	ChatAdmins(ctx context.Context, chatID int64) ([]ChatAdmin, error)
	SetChatTitle(ctx context.Context, chatID int64, title string) error
}
