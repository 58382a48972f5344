package relay

import (
	"errors"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

// ErrUndecodable is returned for payloads that are not valid JSON.
var ErrUndecodable = errors.New("undecodable upstream payload")

// Decoder normalizes one upstream payload.
type Decoder func(raw []byte) (Delta, error)

// NormalizeBuffered maps a complete retrieval-augmented response onto an envelope
// holding a tool fragment followed by an assistant fragment, or onto the provider
// error when the response carries one.
func NormalizeBuffered(raw []byte) (Delta, error) {
	if !gjson.ValidBytes(raw) {
		return Delta{}, ErrUndecodable
	}
	doc := gjson.ParseBytes(raw)
	if e := doc.Get("error"); e.Exists() {
		return errorDelta(e), nil
	}

	message := doc.Get("choices.0.message")
	env := baseEnvelope(doc)
	env.Choices[0].Messages = []Fragment{
		{Role: RoleTool, Content: message.Get("context.messages.0.content").String()},
		{Role: RoleAssistant, Content: message.Get("content").String()},
	}
	return Delta{Kind: KindAnswer, Envelope: env}, nil
}

// NormalizeStreamed maps one current-version streamed delta onto a single fragment.
//
// choices[0].delta is inspected in priority order: context, role, end_turn, content.
func NormalizeStreamed(raw []byte) (Delta, error) {
	if !gjson.ValidBytes(raw) {
		return Delta{}, ErrUndecodable
	}
	doc := gjson.ParseBytes(raw)
	if e := doc.Get("error"); e.Exists() {
		return errorDelta(e), nil
	}

	env := baseEnvelope(doc)
	delta := doc.Get("choices.0.delta")

	var (
		kind     Kind
		fragment Fragment
	)
	switch {
	case delta.Get("context").Exists():
		kind = KindTool
		fragment = Fragment{Role: RoleTool, Content: delta.Get("context.messages.0.content").String()}
	case delta.Get("role").Exists():
		kind = KindRoleAnnounce
		fragment = Fragment{Role: RoleAssistant, Content: ""}
	case doc.Get("choices.0.end_turn").Bool():
		kind = KindEndOfTurn
		fragment = Fragment{Role: RoleAssistant, Content: DoneSentinel}
	default:
		kind = KindContent
		fragment = Fragment{Role: RoleAssistant, Content: delta.Get("content").String()}
	}
	env.Choices[0].Messages = []Fragment{fragment}
	return Delta{Kind: kind, Envelope: env}, nil
}

// NormalizeLegacy handles lines of the deprecated 2023-06-01-preview stream shape.
// The payload is forwarded as is; only id and history_metadata get replaced on encode.
func NormalizeLegacy(raw []byte) (Delta, error) {
	if !gjson.ValidBytes(raw) {
		return Delta{}, ErrUndecodable
	}
	doc := gjson.ParseBytes(raw)
	if e := doc.Get("error"); e.Exists() {
		return errorDelta(e), nil
	}
	if doc.Get("choices.0.messages.0.delta.content").String() == DoneSentinel {
		return Delta{Kind: KindEndOfTurn}, nil
	}
	return Delta{Kind: KindPassthrough, Raw: raw}, nil
}

// NormalizePlainCompletion maps a buffered SDK completion onto one assistant fragment.
func NormalizePlainCompletion(resp openai.ChatCompletionResponse) Delta {
	env := &Envelope{
		ID:      resp.ID,
		Model:   resp.Model,
		Created: resp.Created,
		Object:  resp.Object,
		Choices: []Choice{{Messages: []Fragment{}}},
	}
	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	env.Choices[0].Messages = append(env.Choices[0].Messages, Fragment{Role: RoleAssistant, Content: content})
	return Delta{Kind: KindAnswer, Envelope: env}
}

// NormalizePlainChunk maps one SDK stream chunk. Chunks without choices (content
// filter annotations), empty deltas and the sentinel are skipped.
func NormalizePlainChunk(chunk openai.ChatCompletionStreamResponse) Delta {
	if len(chunk.Choices) == 0 {
		return Delta{Kind: KindSkip}
	}
	content := chunk.Choices[0].Delta.Content
	if content == "" || content == DoneSentinel {
		return Delta{Kind: KindSkip}
	}
	return Delta{
		Kind: KindContent,
		Envelope: &Envelope{
			ID:      chunk.ID,
			Model:   chunk.Model,
			Created: chunk.Created,
			Object:  chunk.Object,
			Choices: []Choice{{Messages: []Fragment{{Role: RoleAssistant, Content: content}}}},
		},
	}
}

func baseEnvelope(doc gjson.Result) *Envelope {
	return &Envelope{
		ID:      doc.Get("id").String(),
		Model:   doc.Get("model").String(),
		Created: doc.Get("created").Int(),
		Object:  doc.Get("object").String(),
		Choices: []Choice{{}},
	}
}

func errorDelta(e gjson.Result) Delta {
	return Delta{Kind: KindError, Err: []byte(e.Raw)}
}
