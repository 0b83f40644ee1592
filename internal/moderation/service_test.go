package moderation

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"gatebot/internal/intake"
	"gatebot/internal/state"
	kit "gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

const (
	controlChat = int64(-100)
	approved    = int64(-300)
)

type fakeBot struct {
	mu     sync.Mutex
	nextID int

	texts   []sentText
	media   []int64 // destination chats of SendMedia
	cleared []kit.MessageRef
	edits   []int
	pins    []int
	admins  []kit.ChatAdmin
}

type sentText struct {
	ChatID int64
	Text   string
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
	f.media = append(f.media, to.ChatID)
	return f.ref(to.ChatID), nil
}

func (f *fakeBot) SendAlbum(ctx context.Context, to kit.ChatTarget, items []kit.AlbumItem) error {
	return nil
}

func (f *fakeBot) SendPhotoBytes(ctx context.Context, to kit.ChatTarget, png []byte, caption string) (kit.MessageRef, error) {
	return f.ref(to.ChatID), nil
}

func (f *fakeBot) CopyMessage(ctx context.Context, to kit.ChatTarget, from kit.MessageRef) (kit.MessageRef, error) {
	return f.ref(to.ChatID), nil
}

func (f *fakeBot) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, ref.MessageID)
	return nil
}

func (f *fakeBot) ClearReplyMarkup(ctx context.Context, ref kit.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, ref)
	return nil
}

func (f *fakeBot) DeleteMessage(ctx context.Context, ref kit.MessageRef) error { return nil }

func (f *fakeBot) PinMessage(ctx context.Context, ref kit.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pins = append(f.pins, ref.MessageID)
	return nil
}

func (f *fakeBot) AnswerCallback(ctx context.Context, callbackID, text string) error { return nil }

func (f *fakeBot) ChatAdmins(ctx context.Context, chatID int64) ([]kit.ChatAdmin, error) {
	return f.admins, nil
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

func newTestService(t *testing.T) (*Service, *fakeBot, *state.Store) {
	t.Helper()
	store := state.Open(filepath.Join(t.TempDir(), "state.json"), state.Retention{}, logx.Nop())
	bot := &fakeBot{}
	s := New(Config{ControlChatID: controlChat, ApprovedChannelID: approved}, bot, store, logx.Nop())
	return s, bot, store
}

func insertPending(t *testing.T, store *state.Store, promptID int, userID int64, p intake.Payload) {
	t.Helper()
	raw, err := intake.EncodePayload(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Update(func(d *state.Document) {
		d.Pending[strconv.Itoa(promptID)] = state.PendingDecision{
			UserID: userID, CreatedAt: time.Now().UTC(), Payload: raw,
		}
	}); err != nil {
		t.Fatal(err)
	}
}

func TestDenyClearsPendingWithoutPublishing(t *testing.T) {
	s, bot, store := newTestService(t)
	insertPending(t, store, 55, 42, intake.TextPayload{Text: "idea"})

	prompt := kit.MessageRef{ChatID: controlChat, MessageID: 55}
	s.Resolve(context.Background(), prompt, false)

	store.View(func(d *state.Document) {
		if len(d.Pending) != 0 {
			t.Fatalf("pending = %v, want empty", d.Pending)
		}
	})
	if got := bot.textsTo(approved); len(got) != 0 {
		t.Fatalf("approved channel received %v on deny", got)
	}
	notes := bot.textsTo(42)
	if len(notes) != 1 || notes[0].Text != "Your submission did not pass moderation." {
		t.Errorf("submitter notice = %+v", notes)
	}
	if len(bot.cleared) != 1 || bot.cleared[0].MessageID != 55 {
		t.Errorf("prompt markup not cleared: %+v", bot.cleared)
	}
}

func TestApprovePublishesExactlyOnce(t *testing.T) {
	s, bot, store := newTestService(t)
	insertPending(t, store, 56, 42, intake.TextPayload{Text: "idea"})

	prompt := kit.MessageRef{ChatID: controlChat, MessageID: 56}
	s.Resolve(context.Background(), prompt, true)
	s.Resolve(context.Background(), prompt, true) // replayed callback

	published := bot.textsTo(approved)
	if len(published) != 1 || published[0].Text != "idea" {
		t.Fatalf("approved channel got %+v, want the text once", published)
	}
	notes := bot.textsTo(42)
	if len(notes) != 1 || notes[0].Text != "Your submission was approved!" {
		t.Errorf("submitter notice = %+v", notes)
	}
}

func TestResolveMissingPromptIsNoOp(t *testing.T) {
	s, bot, _ := newTestService(t)
	s.Resolve(context.Background(), kit.MessageRef{ChatID: controlChat, MessageID: 99}, true)
	if got := bot.textsTo(approved); len(got) != 0 {
		t.Errorf("approved channel got %v for an unknown prompt", got)
	}
	if got := bot.textsTo(controlChat); len(got) != 0 {
		t.Errorf("control chat got %v for an unknown prompt", got)
	}
}

func TestRefreshControlCreatesThenEdits(t *testing.T) {
	s, bot, store := newTestService(t)
	ctx := context.Background()

	s.RefreshControl(ctx)
	var cmid int
	store.View(func(d *state.Document) { cmid = d.ControlMessageID })
	if cmid == 0 {
		t.Fatal("control message id not persisted")
	}
	if len(bot.pins) != 1 || bot.pins[0] != cmid {
		t.Errorf("pins = %v, want the new control message", bot.pins)
	}

	s.RefreshControl(ctx)
	if len(bot.edits) != 1 || bot.edits[0] != cmid {
		t.Errorf("edits = %v, want one edit of message %d", bot.edits, cmid)
	}
	if got := len(bot.textsTo(controlChat)); got != 1 {
		t.Errorf("control messages created = %d, want 1", got)
	}
}

func TestBumperLifecycle(t *testing.T) {
	s, bot, store := newTestService(t)
	bot.admins = []kit.ChatAdmin{{UserID: 7, Username: "admin"}}
	ctx := context.Background()
	adminMsg := &kit.Message{ChatID: controlChat, FromID: 7}

	s.BumperSet(ctx, adminMsg, "check out the channel")
	s.BumperOn(ctx, adminMsg)
	store.View(func(d *state.Document) {
		if !d.Bumper.Active || d.Bumper.Version != 1 || d.Bumper.Text != "check out the channel" {
			t.Fatalf("bumper = %+v", d.Bumper)
		}
	})

	// Activation resets reach for the new version.
	if err := store.Update(func(d *state.Document) { d.Bumper.AddReach(1) }); err != nil {
		t.Fatal(err)
	}
	s.BumperOn(ctx, adminMsg)
	store.View(func(d *state.Document) {
		if d.Bumper.Version != 2 || len(d.Bumper.ReachUserIDs) != 0 {
			t.Errorf("re-activation must reset reach: %+v", d.Bumper)
		}
	})

	s.BumperOff(ctx, adminMsg)
	store.View(func(d *state.Document) {
		if d.Bumper.Active {
			t.Error("bumper still active after off")
		}
	})

	// A non-admin cannot mutate.
	s.BumperOn(ctx, &kit.Message{ChatID: controlChat, FromID: 8})
	store.View(func(d *state.Document) {
		if d.Bumper.Active {
			t.Error("non-admin activated the bumper")
		}
	})
}
