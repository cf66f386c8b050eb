// Package praise turns upstream frames into engine-ready messages.
package praise

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/praise-danmaku/danmaku/internal/danmaku"
)

// StreamPrefix tags ids synthesized for stream messages.
const StreamPrefix = "ws"

// Batch is the result of normalizing one frame.
type Batch struct {
	Messages []danmaku.Message
	// Dropped counts entries rejected for a missing or blank text.
	Dropped int
	// Control counts text-less objects such as acknowledgements.
	Control int
}

// Normalize decodes a frame holding one message object or an array of them.
// Order is preserved. Entries without a usable text are dropped; objects that
// carry no text field at all are control frames and are only counted.
func Normalize(raw json.RawMessage, now time.Time) Batch {
	var b Batch

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		b.Dropped++
		return b
	}

	var entries []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			b.Dropped++
			return b
		}
	case '{':
		entries = []json.RawMessage{trimmed}
	default:
		b.Dropped++
		return b
	}

	for _, e := range entries {
		msg, kind := normalizeOne(e, now)
		switch kind {
		case entryOK:
			b.Messages = append(b.Messages, msg)
		case entryControl:
			b.Control++
		default:
			b.Dropped++
		}
	}
	return b
}

type entryKind int

const (
	entryOK entryKind = iota
	entryControl
	entryInvalid
)

func normalizeOne(raw json.RawMessage, now time.Time) (danmaku.Message, entryKind) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return danmaku.Message{}, entryInvalid
	}

	rawText, ok := fields["text"]
	if !ok {
		return danmaku.Message{}, entryControl
	}
	text, ok := rawText.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return danmaku.Message{}, entryInvalid
	}

	id := idOf(fields["id"])
	if id == "" {
		id = NewID(StreamPrefix, now)
	}

	ts, _ := fields["timestamp"].(string)

	return danmaku.Message{
		ID:        id,
		Text:      text,
		Tokens:    Tokens(fields["tokens"], text),
		Timestamp: ts,
	}, entryOK
}

func idOf(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		if f, err := id.Float64(); err == nil && !math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return id.String()
	}
	return ""
}

// Tokens returns the weight of a message. Positive finite numbers and numeric
// strings are used as-is; anything else estimates half the rune count.
func Tokens(v any, text string) float64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Estimate(text)
		}
		f = n
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return Estimate(text)
		}
		f = n
	default:
		return Estimate(text)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return Estimate(text)
	}
	return f
}

// Estimate is the fallback weight: half the rune count.
func Estimate(text string) float64 {
	return float64(utf8.RuneCountInString(text)) / 2
}

// NewID returns "<prefix>_<unix-millis>_<9 random chars>".
func NewID(prefix string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix)
}
