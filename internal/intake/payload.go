package intake

import (
	"encoding/json"
	"fmt"

	"gatebot/internal/state"
	kit "gatebot/internal/transport"
)

// Payload is the closed set of submission variants. Each variant knows its own
// byte size; unknown sizes count as zero.
type Payload interface {
	Type() string
	SizeBytes() int64
	isPayload()
}

type TextPayload struct {
	Text string `json:"text"`
}

type PhotoPayload struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	Caption  string `json:"caption,omitempty"`
}

type VideoPayload struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	Caption  string `json:"caption,omitempty"`
}

type DocumentPayload struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	Caption  string `json:"caption,omitempty"`
}

type GroupPayload struct {
	Items []state.MediaItem `json:"items"`
}

func (TextPayload) Type() string     { return "text" }
func (PhotoPayload) Type() string    { return "photo" }
func (VideoPayload) Type() string    { return "video" }
func (DocumentPayload) Type() string { return "document" }
func (GroupPayload) Type() string    { return "group" }

func (p TextPayload) SizeBytes() int64     { return int64(len(p.Text)) }
func (p PhotoPayload) SizeBytes() int64    { return p.FileSize }
func (p VideoPayload) SizeBytes() int64    { return p.FileSize }
func (p DocumentPayload) SizeBytes() int64 { return p.FileSize }

func (p GroupPayload) SizeBytes() int64 {
	var sum int64
	for _, it := range p.Items {
		sum += it.FileSize
	}
	return sum
}

func (TextPayload) isPayload()     {}
func (PhotoPayload) isPayload()    {}
func (VideoPayload) isPayload()    {}
func (DocumentPayload) isPayload() {}
func (GroupPayload) isPayload()    {}

// envelope is the tagged wire form used to persist a payload inside a pending
// decision.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes a payload into its tagged envelope.
func EncodePayload(p Payload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: p.Type(), Data: data})
}

// DecodePayload restores a payload from its tagged envelope.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case "text":
		var p TextPayload
		return p, json.Unmarshal(env.Data, &p)
	case "photo":
		var p PhotoPayload
		return p, json.Unmarshal(env.Data, &p)
	case "video":
		var p VideoPayload
		return p, json.Unmarshal(env.Data, &p)
	case "document":
		var p DocumentPayload
		return p, json.Unmarshal(env.Data, &p)
	case "group":
		var p GroupPayload
		return p, json.Unmarshal(env.Data, &p)
	default:
		return nil, fmt.Errorf("unknown payload type %q", env.Type)
	}
}

// Classify maps an incoming single message to its payload variant. A message
// with no recognizable content classifies as empty text.
func Classify(msg *kit.Message) Payload {
	if msg.Media != nil {
		caption := msg.Caption
		switch msg.Media.Kind {
		case kit.MediaPhoto:
			return PhotoPayload{FileID: msg.Media.FileID, FileSize: msg.Media.FileSize, Caption: caption}
		case kit.MediaVideo:
			return VideoPayload{FileID: msg.Media.FileID, FileSize: msg.Media.FileSize, Caption: caption}
		case kit.MediaDocument:
			return DocumentPayload{FileID: msg.Media.FileID, FileSize: msg.Media.FileSize, Caption: caption}
		}
	}
	return TextPayload{Text: msg.Text}
}
