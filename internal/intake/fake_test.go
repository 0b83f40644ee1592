package intake

import (
	"context"
	"sync"

	kit "gatebot/internal/transport"
)

// fakeBot records outbound calls and answers with incrementing message ids.
type fakeBot struct {
	mu     sync.Mutex
	nextID int

	texts  []sentText
	media  []sentMedia
	albums []sentAlbum
	copies []kit.MessageRef
}

type sentText struct {
	ChatID int64
	Text   string
}

type sentMedia struct {
	ChatID  int64
	Kind    kit.MediaKind
	FileID  string
	Caption string
}

type sentAlbum struct {
	ChatID int64
	Items  []kit.AlbumItem
}

func (f *fakeBot) ref(chatID int64) kit.MessageRef {
	f.nextID++
	return kit.MessageRef{ChatID: chatID, MessageID: f.nextID}
}

func (f *fakeBot) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeBot) Stop(ctx context.Context) error                         { return nil }

func (f *fakeBot) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{ChatID: to.ChatID, Text: text})
	return f.ref(to.ChatID), nil
}

func (f *fakeBot) SendMedia(ctx context.Context, to kit.ChatTarget, kind kit.MediaKind, fileID, caption string) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, sentMedia{ChatID: to.ChatID, Kind: kind, FileID: fileID, Caption: caption})
	return f.ref(to.ChatID), nil
}

func (f *fakeBot) SendAlbum(ctx context.Context, to kit.ChatTarget, items []kit.AlbumItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.albums = append(f.albums, sentAlbum{ChatID: to.ChatID, Items: items})
	return nil
}

func (f *fakeBot) SendPhotoBytes(ctx context.Context, to kit.ChatTarget, png []byte, caption string) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ref(to.ChatID), nil
}

func (f *fakeBot) CopyMessage(ctx context.Context, to kit.ChatTarget, from kit.MessageRef) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, from)
	return f.ref(to.ChatID), nil
}

func (f *fakeBot) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (f *fakeBot) ClearReplyMarkup(ctx context.Context, ref kit.MessageRef) error { return nil }
func (f *fakeBot) DeleteMessage(ctx context.Context, ref kit.MessageRef) error    { return nil }
func (f *fakeBot) PinMessage(ctx context.Context, ref kit.MessageRef) error       { return nil }
func (f *fakeBot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return nil
}
func (f *fakeBot) ChatAdmins(ctx context.Context, chatID int64) ([]kit.ChatAdmin, error) {
	return nil, nil
}
func (f *fakeBot) SetChatTitle(ctx context.Context, chatID int64, title string) error { return nil }

func (f *fakeBot) textsTo(chatID int64) []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentText
	for _, s := range f.texts {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}
