package caption

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Speaker string

const (
	SpeakerDoctor  Speaker = "DOCTOR"
	SpeakerPatient Speaker = "PATIENT"
	SpeakerSystem  Speaker = "SYSTEM"
	SpeakerUnknown Speaker = "UNKNOWN"
)

func parseSpeaker(s string) Speaker {
	switch sp := Speaker(strings.ToUpper(strings.TrimSpace(s))); sp {
	case SpeakerDoctor, SpeakerPatient, SpeakerSystem:
		return sp
	default:
		return SpeakerUnknown
	}
}

// Chunk is the canonical caption record every transport frame is mapped to.
type Chunk struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Seq        int64     `json:"seq"`
	Text       string    `json:"text"`
	Lang       string    `json:"lang"`
	Translated bool      `json:"translated"`
	FromLang   string    `json:"fromLang,omitempty"`
	Speaker    Speaker   `json:"speaker"`
}

var (
	ErrInvalidFrame = errors.New("caption frame is not a JSON object")
	ErrMissingText  = errors.New("caption frame has no text")
)

type rawFrame struct {
	ID         json.RawMessage `json:"id"`
	TS         json.RawMessage `json:"ts"`
	Timestamp  json.RawMessage `json:"timestamp"`
	Seq        *float64        `json:"seq"`
	Text       *string         `json:"text"`
	Caption    *string         `json:"caption"`
	Transcript *string         `json:"transcript"`
	Lang       string          `json:"lang"`
	Translated bool            `json:"translated"`
	FromLang   string          `json:"fromLang"`
	FromLangS  string          `json:"from_lang"`
	Speaker    string          `json:"speaker"`
}

// Normalize maps one raw frame onto a Chunk. The text may arrive as text,
// caption or transcript; the first non-blank one wins. Frames without usable
// text are rejected so the caller can drop them.
func Normalize(frame []byte, defaultLang string, now time.Time) (Chunk, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Chunk{}, ErrInvalidFrame
	}
	var raw rawFrame
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Chunk{}, ErrInvalidFrame
	}

	text := firstText(raw.Text, raw.Caption, raw.Transcript)
	if text == "" {
		return Chunk{}, ErrMissingText
	}

	c := Chunk{
		ID:         rawString(raw.ID),
		Text:       text,
		Lang:       strings.TrimSpace(raw.Lang),
		Translated: raw.Translated,
		FromLang:   strings.TrimSpace(raw.FromLang),
		Speaker:    parseSpeaker(raw.Speaker),
		Timestamp:  parseTimestamp(raw.TS, raw.Timestamp, now),
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Lang == "" {
		c.Lang = defaultLang
	}
	if c.FromLang == "" {
		c.FromLang = strings.TrimSpace(raw.FromLangS)
	}
	if raw.Seq != nil && !math.IsNaN(*raw.Seq) {
		c.Seq = int64(*raw.Seq)
	}
	return c, nil
}

func firstText(candidates ...*string) string {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if t := strings.TrimSpace(*c); t != "" {
			return t
		}
	}
	return ""
}

func rawString(v json.RawMessage) string {
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// parseTimestamp accepts epoch numbers (milliseconds, or seconds when small)
// and RFC 3339 strings. Anything else falls back to the arrival time.
func parseTimestamp(ts, alt json.RawMessage, now time.Time) time.Time {
	for _, v := range []json.RawMessage{ts, alt} {
		if len(v) == 0 || bytes.Equal(v, []byte("null")) {
			continue
		}
		var n float64
		if err := json.Unmarshal(v, &n); err == nil {
			if n >= 1e11 {
				return time.UnixMilli(int64(n))
			}
			return time.Unix(int64(n), 0)
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t
			}
		}
	}
	return now
}
