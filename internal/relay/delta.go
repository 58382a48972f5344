package relay

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// Kind tags which normalization case produced a Delta.
type Kind int

const (
	// KindSkip carries nothing and is dropped.
	KindSkip Kind = iota
	// KindError carries a provider error value.
	KindError
	// KindTool carries citation context.
	KindTool
	// KindRoleAnnounce opens an assistant message with empty content.
	KindRoleAnnounce
	// KindContent carries answer text.
	KindContent
	// KindEndOfTurn is the absorbed [DONE] sentinel.
	KindEndOfTurn
	// KindAnswer is a complete buffered answer (tool and assistant fragments).
	KindAnswer
	// KindPassthrough is a raw legacy-version payload forwarded nearly untouched.
	KindPassthrough
)

var kindNames = map[Kind]string{
	KindSkip:         "skip",
	KindError:        "error",
	KindTool:         "tool",
	KindRoleAnnounce: "role",
	KindContent:      "content",
	KindEndOfTurn:    "end_turn",
	KindAnswer:       "answer",
	KindPassthrough:  "legacy",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Delta is the normalized form of one upstream payload.
type Delta struct {
	Kind     Kind
	Envelope *Envelope
	// Err is the raw JSON error value for KindError.
	Err []byte
	// Raw is the original payload for KindPassthrough.
	Raw []byte
}

// Visible reports whether the delta produces a client line.
func (d Delta) Visible() bool {
	switch d.Kind {
	case KindSkip, KindEndOfTurn:
		return false
	}
	// A role announcement or content chunk whose text is the sentinel is absorbed too.
	for _, f := range d.Envelope.Fragments() {
		if f.Content == DoneSentinel {
			return false
		}
	}
	return true
}

// Encode serializes the delta as one NDJSON line stamped with c.
func (d Delta) Encode(c Correlation) ([]byte, error) {
	switch d.Kind {
	case KindError:
		return MarshalLine(ErrorEnvelope{Error: d.Err})
	case KindPassthrough:
		return encodePassthrough(d.Raw, c)
	}
	if d.Envelope == nil {
		return nil, fmt.Errorf("encode %s delta: no envelope", d.Kind)
	}
	env := *d.Envelope
	if c.ID != "" {
		env.ID = c.ID
	}
	env.HistoryMetadata = c.metadata()
	return MarshalLine(env)
}

func encodePassthrough(raw []byte, c Correlation) ([]byte, error) {
	out := raw
	var err error
	if c.ID != "" {
		if out, err = sjson.SetBytes(out, "id", c.ID); err != nil {
			return nil, fmt.Errorf("set legacy id: %w", err)
		}
	}
	if out, err = sjson.SetRawBytes(out, "history_metadata", c.metadata()); err != nil {
		return nil, fmt.Errorf("set legacy metadata: %w", err)
	}
	return append(out, '\n'), nil
}
