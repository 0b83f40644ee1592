package intake

import (
	"testing"

	"gatebot/internal/state"
	kit "gatebot/internal/transport"
)

func TestPayloadSizes(t *testing.T) {
	cases := []struct {
		name string
		p    Payload
		want int64
	}{
		{"text is utf8 bytes", TextPayload{Text: "héllo"}, 6},
		{"photo uses reported size", PhotoPayload{FileID: "f", FileSize: 1234}, 1234},
		{"group sums members", GroupPayload{Items: []state.MediaItem{
			{Subtype: "photo", FileSize: 100},
			{Subtype: "video", FileSize: 250},
		}}, 350},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.SizeBytes(); got != tc.want {
				t.Errorf("SizeBytes() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	payloads := []Payload{
		TextPayload{Text: "hello"},
		PhotoPayload{FileID: "p1", FileSize: 10, Caption: "c"},
		VideoPayload{FileID: "v1", FileSize: 20},
		DocumentPayload{FileID: "d1", FileSize: 30},
		GroupPayload{Items: []state.MediaItem{{Subtype: "photo", FileID: "x", FileSize: 5}}},
	}
	for _, p := range payloads {
		raw, err := EncodePayload(p)
		if err != nil {
			t.Fatalf("encode %T: %v", p, err)
		}
		got, err := DecodePayload(raw)
		if err != nil {
			t.Fatalf("decode %T: %v", p, err)
		}
		if got.Type() != p.Type() || got.SizeBytes() != p.SizeBytes() {
			t.Errorf("round trip changed %T: got %T (%s, %d bytes)", p, got, got.Type(), got.SizeBytes())
		}
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	if _, err := DecodePayload([]byte(`{"type":"sticker","data":{}}`)); err == nil {
		t.Fatal("unknown tag must fail to decode")
	}
}

func TestClassify(t *testing.T) {
	text := Classify(&kit.Message{Text: "hi"})
	if text.Type() != "text" {
		t.Errorf("text classified as %q", text.Type())
	}
	doc := Classify(&kit.Message{
		Caption: "cap",
		Media:   &kit.Media{Kind: kit.MediaDocument, FileID: "d", FileSize: 9},
	})
	d, ok := doc.(DocumentPayload)
	if !ok || d.Caption != "cap" || d.FileSize != 9 {
		t.Errorf("document classified as %#v", doc)
	}
}
