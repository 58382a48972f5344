package relay

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

// trackingBody records whether the relay released the upstream body.
type trackingBody struct {
	io.Reader
	mu     sync.Mutex
	closed int
}

func (b *trackingBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

func (b *trackingBody) closeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func sse(payloads ...string) string {
	var sb strings.Builder
	for _, p := range payloads {
		sb.WriteString("data: " + p + "\n\n")
	}
	return sb.String()
}

func collect(t *testing.T, r *Relay) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range r.Envelopes() {
		if !strings.HasSuffix(string(line), "\n") {
			t.Fatalf("line not newline terminated: %q", line)
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			t.Fatalf("invalid line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func fragmentOf(t *testing.T, env map[string]any) (string, string) {
	t.Helper()
	choices, _ := env["choices"].([]any)
	if len(choices) != 1 {
		t.Fatalf("envelope has %d choices: %v", len(choices), env)
	}
	msgs, _ := choices[0].(map[string]any)["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("envelope has %d fragments: %v", len(msgs), env)
	}
	frag := msgs[0].(map[string]any)
	role, _ := frag["role"].(string)
	content, _ := frag["content"].(string)
	return role, content
}

func TestRelay_Ordering(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(sse(
		`{"id":"up","choices":[{"delta":{"role":"assistant"}}]}`,
		`{"id":"up","choices":[{"delta":{"context":{"messages":[{"role":"tool","content":"context"}]}}}]}`,
		`{"id":"up","choices":[{"delta":{"content":"a"}}]}`,
		`{"id":"up","choices":[{"delta":{"content":"b"}}]}`,
		`{"id":"up","choices":[{"delta":{},"end_turn":true}]}`,
	))}

	relay := NewRelay(NewLineSource(body, NormalizeStreamed), Correlation{ID: "turn-1"})
	got := collect(t, relay)

	want := [][2]string{
		{RoleAssistant, ""},
		{RoleTool, "context"},
		{RoleAssistant, "a"},
		{RoleAssistant, "b"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d envelopes, want %d: %v", len(got), len(want), got)
	}
	for i, env := range got {
		role, content := fragmentOf(t, env)
		if role != want[i][0] || content != want[i][1] {
			t.Errorf("envelope[%d] = (%s, %q), want (%s, %q)", i, role, content, want[i][0], want[i][1])
		}
		if env["id"] != "turn-1" {
			t.Errorf("envelope[%d] id = %v, want turn id", i, env["id"])
		}
	}
	if body.closeCount() != 1 {
		t.Errorf("body closed %d times, want 1", body.closeCount())
	}
}

func TestRelay_ErrorLineDoesNotStopStream(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(sse(
		`{"choices":[{"delta":{"content":"before"}}]}`,
		`{"error":"boom"}`,
		`{"choices":[{"delta":{"content":"after"}}]}`,
	))}

	got := collect(t, NewRelay(NewLineSource(body, NormalizeStreamed), Correlation{ID: "t"}))
	if len(got) != 3 {
		t.Fatalf("got %d envelopes, want 3: %v", len(got), got)
	}
	if got[1]["error"] != "boom" || len(got[1]) != 1 {
		t.Errorf("error envelope = %v, want {error: boom}", got[1])
	}
	if _, content := fragmentOf(t, got[2]); content != "after" {
		t.Errorf("content after error = %q", content)
	}
}

func TestRelay_SkipsNoise(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(
		"\n" +
			": keep-alive\n" +
			"data: not json\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n" +
			"data: [DONE]\n",
	)}

	got := collect(t, NewRelay(NewLineSource(body, NormalizeStreamed), Correlation{}))
	if len(got) != 1 {
		t.Fatalf("got %d envelopes, want 1: %v", len(got), got)
	}
	if string(mustJSON(t, got[0]["history_metadata"])) != `{}` {
		t.Errorf("history_metadata = %v, want {}", got[0]["history_metadata"])
	}
}

func TestRelay_AcceptsUnprefixedLines(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(
		"{\"choices\":[{\"delta\":{\"content\":\"bare\"}}]}\n" +
			"data:{\"choices\":[{\"delta\":{\"content\":\"tight\"}}]}\n",
	)}

	got := collect(t, NewRelay(NewLineSource(body, NormalizeStreamed), Correlation{}))
	if len(got) != 2 {
		t.Fatalf("got %d envelopes, want 2: %v", len(got), got)
	}
	for i, want := range []string{"bare", "tight"} {
		if _, content := fragmentOf(t, got[i]); content != want {
			t.Errorf("envelope %d content = %q, want %q", i, content, want)
		}
	}
}

func TestRelay_ReadFailureIsTerminal(t *testing.T) {
	body := &trackingBody{Reader: io.MultiReader(
		strings.NewReader(sse(`{"choices":[{"delta":{"content":"partial"}}]}`)),
		failingReader{err: errors.New("connection reset")},
	)}

	var kinds []Kind
	relay := NewRelay(NewLineSource(body, NormalizeStreamed), Correlation{ID: "t"},
		WithObserver(func(k Kind) { kinds = append(kinds, k) }))
	got := collect(t, relay)

	if len(got) != 2 {
		t.Fatalf("got %d envelopes, want 2: %v", len(got), got)
	}
	if got[1]["error"] != "connection reset" {
		t.Errorf("terminal envelope = %v", got[1])
	}
	if body.closeCount() != 1 {
		t.Errorf("body closed %d times, want 1", body.closeCount())
	}
	if len(kinds) != 2 || kinds[0] != KindContent || kinds[1] != KindError {
		t.Errorf("observed kinds = %v", kinds)
	}
}

func TestRelay_EarlyBreakClosesBody(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(sse(
		`{"choices":[{"delta":{"content":"1"}}]}`,
		`{"choices":[{"delta":{"content":"2"}}]}`,
	))}
	relay := NewRelay(NewLineSource(body, NormalizeStreamed), Correlation{})

	for range relay.Envelopes() {
		break
	}
	if body.closeCount() != 1 {
		t.Fatalf("body closed %d times, want 1", body.closeCount())
	}

	// The sequence is single use.
	n := 0
	for range relay.Envelopes() {
		n++
	}
	if n != 0 {
		t.Errorf("second range yielded %d lines", n)
	}
	relay.Close()
	if body.closeCount() != 1 {
		t.Errorf("Close after range closed body again")
	}
}

func TestRelay_LegacyPassthrough(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(sse(
		`{"id":"x","choices":[{"messages":[{"delta":{"role":"tool","content":"cites"}}]}]}`,
		`{"id":"x","choices":[{"messages":[{"delta":{"content":"[DONE]"}}]}]}`,
	))}
	got := collect(t, NewRelay(NewLineSource(body, NormalizeLegacy),
		Correlation{ID: "turn-legacy", HistoryMetadata: json.RawMessage(`{"conversation_id":"c"}`)}))

	if len(got) != 1 {
		t.Fatalf("got %d envelopes, want 1: %v", len(got), got)
	}
	if got[0]["id"] != "turn-legacy" {
		t.Errorf("id = %v", got[0]["id"])
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
