package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"quorum/internal/adapter/tool"
	"quorum/internal/domain"
	"quorum/internal/usecase"
)

// scriptedProvider replays canned turns, one per ChatStream call. Calls past
// the end of the script yield empty turns.
type scriptedProvider struct {
	turns []string
	calls int
	err   error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	if p.err != nil {
		return nil, p.err
	}
	var turn string
	if p.calls < len(p.turns) {
		turn = p.turns[p.calls]
	}
	p.calls++

	ch := make(chan domain.StreamDelta, 2)
	if turn != "" {
		ch <- domain.StreamDelta{Content: turn}
	}
	ch <- domain.StreamDelta{Done: true}
	close(ch)
	return ch, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoop(t *testing.T, provider domain.StreamProvider, maxIterations int) (*usecase.Loop, *tool.Registry) {
	t.Helper()
	registry := tool.NewRegistry(discardLogger())
	registry.Register(tool.NewCalculator())
	loop := usecase.NewLoop(usecase.LoopDeps{
		Provider:      provider,
		Tools:         registry,
		Logger:        discardLogger(),
		Model:         "test-model",
		MaxIterations: maxIterations,
	})
	return loop, registry
}

func collect(t *testing.T, ch <-chan domain.Fragment) []domain.Fragment {
	t.Helper()
	var frags []domain.Fragment
	for f := range ch {
		frags = append(frags, f)
	}
	return frags
}

const calculatorCall = "Let me compute that.\n```json\n" +
	`{"tool": "calculator", "parameters": {"op": "add", "a": 2, "b": 3}}` +
	"\n```\n"

func TestLoopCalculatorScenario(t *testing.T) {
	provider := &scriptedProvider{turns: []string{
		calculatorCall,
		"The answer is 5.",
	}}
	loop, _ := newTestLoop(t, provider, 10)

	frags := collect(t, loop.Run(context.Background(), "what is 2+3?"))

	var result string
	for _, f := range frags {
		if f.Err != nil {
			t.Fatalf("unexpected Err fragment: %v", f.Err)
		}
		if f.Type == domain.FragmentToolResult {
			result = f.Text
		}
	}
	if !strings.Contains(result, "5") {
		t.Errorf("tool result = %q, want it to contain 5", result)
	}

	// user, assistant (tool call), synthetic user (result), assistant (answer)
	h := loop.History()
	if len(h) != 4 {
		t.Fatalf("history length = %d, want 4", len(h))
	}
	wantRoles := []string{domain.RoleUser, domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant}
	for i, want := range wantRoles {
		if h[i].Role != want {
			t.Errorf("history[%d].Role = %q, want %q", i, h[i].Role, want)
		}
	}
	if !strings.Contains(h[2].Content, "5") {
		t.Errorf("synthetic result turn = %q, want it to contain 5", h[2].Content)
	}
}

func TestLoopHonorsOnlyFirstBlock(t *testing.T) {
	turn := calculatorCall + "\nAnd also:\n```json\n" +
		`{"tool": "calculator", "parameters": {"op": "mul", "a": 10, "b": 10}}` +
		"\n```\n"
	provider := &scriptedProvider{turns: []string{turn, "done"}}
	loop, _ := newTestLoop(t, provider, 10)

	frags := collect(t, loop.Run(context.Background(), "go"))

	var results []string
	for _, f := range frags {
		if f.Type == domain.FragmentToolResult {
			results = append(results, f.Text)
		}
	}
	if len(results) != 1 {
		t.Fatalf("tool results = %d, want exactly 1", len(results))
	}
	if !strings.Contains(results[0], "5") {
		t.Errorf("result = %q, want the first block's 2+3", results[0])
	}
}

func TestLoopSkipsMalformedBlock(t *testing.T) {
	turn := "```json\n{not json}\n```\n" + calculatorCall
	provider := &scriptedProvider{turns: []string{turn, "done"}}
	loop, _ := newTestLoop(t, provider, 10)

	frags := collect(t, loop.Run(context.Background(), "go"))

	found := false
	for _, f := range frags {
		if f.Type == domain.FragmentToolResult && strings.Contains(f.Text, "5") {
			found = true
		}
	}
	if !found {
		t.Error("the first well-formed block should be honored past a malformed one")
	}
}

func TestLoopNoToolCallEndsNaturally(t *testing.T) {
	provider := &scriptedProvider{turns: []string{"just prose, no tools"}}
	loop, _ := newTestLoop(t, provider, 10)

	frags := collect(t, loop.Run(context.Background(), "hi"))

	if provider.calls != 1 {
		t.Errorf("model calls = %d, want 1", provider.calls)
	}
	for _, f := range frags {
		if f.Type != domain.FragmentText {
			t.Errorf("unexpected fragment type %q", f.Type)
		}
	}
	if len(loop.History()) != 2 {
		t.Errorf("history length = %d, want 2 (user + assistant)", len(loop.History()))
	}
}

func TestLoopUnknownTool(t *testing.T) {
	turn := "```json\n" + `{"tool": "nope", "parameters": {}}` + "\n```\n"
	provider := &scriptedProvider{turns: []string{turn, "ok, stopping"}}
	loop, _ := newTestLoop(t, provider, 10)

	frags := collect(t, loop.Run(context.Background(), "go"))

	var notice string
	for _, f := range frags {
		if f.Type == domain.FragmentNotice {
			notice = f.Text
		}
	}
	if !strings.Contains(notice, "nope") || !strings.Contains(notice, "calculator") {
		t.Errorf("notice = %q, want unknown id and the valid id list", notice)
	}

	// The failure is folded back as a user turn so the model can correct.
	h := loop.History()
	if len(h) != 4 {
		t.Fatalf("history length = %d, want 4", len(h))
	}
	if h[2].Role != domain.RoleUser || !strings.Contains(h[2].Content, "calculator") {
		t.Errorf("synthetic turn = %+v, want user turn listing valid ids", h[2])
	}
}

func TestLoopValidationFailure(t *testing.T) {
	turn := "```json\n" + `{"tool": "calculator", "parameters": {"op": "pow", "a": 2}}` + "\n```\n"
	provider := &scriptedProvider{turns: []string{turn, "ok"}}
	loop, _ := newTestLoop(t, provider, 10)

	frags := collect(t, loop.Run(context.Background(), "go"))

	for _, f := range frags {
		if f.Type == domain.FragmentToolResult {
			t.Fatal("tool must not execute on validation failure")
		}
	}

	h := loop.History()
	if len(h) != 4 {
		t.Fatalf("history length = %d, want 4", len(h))
	}
	folded := h[2].Content
	if !strings.Contains(folded, "op") || !strings.Contains(folded, "b") {
		t.Errorf("folded validation detail = %q, want every failed field named", folded)
	}
}

func TestLoopMaxIterations(t *testing.T) {
	// Every turn calls the calculator, so the loop never ends naturally.
	provider := &scriptedProvider{turns: []string{
		calculatorCall, calculatorCall, calculatorCall, calculatorCall,
	}}
	loop, _ := newTestLoop(t, provider, 3)

	frags := collect(t, loop.Run(context.Background(), "go"))

	if provider.calls != 3 {
		t.Errorf("model calls = %d, want exactly maxIterations=3", provider.calls)
	}
	last := frags[len(frags)-1]
	if last.Type != domain.FragmentNotice || !strings.Contains(last.Text, "max iterations") {
		t.Errorf("last fragment = %+v, want max iterations notice", last)
	}
}

func TestLoopFinishTool(t *testing.T) {
	turn := "```json\n" + `{"tool": "finish", "parameters": {"reason": "all done"}}` + "\n```\n"
	provider := &scriptedProvider{turns: []string{turn, "should never be asked"}}
	loop, _ := newTestLoop(t, provider, 10)

	var finishedWith string
	frags := collect(t, loop.Run(context.Background(), "wrap up"))

	for _, f := range frags {
		if f.Type == domain.FragmentNotice && strings.Contains(f.Text, "finished") {
			finishedWith = f.Text
		}
	}
	if !strings.Contains(finishedWith, "all done") {
		t.Errorf("termination fragment = %q, want the finish reason", finishedWith)
	}
	if provider.calls != 1 {
		t.Errorf("model calls = %d, want 1 (finish ends the loop)", provider.calls)
	}
}

func TestLoopObservers(t *testing.T) {
	registry := tool.NewRegistry(discardLogger())
	registry.Register(tool.NewCalculator())

	var calls, results []string
	loop := usecase.NewLoop(usecase.LoopDeps{
		Provider: &scriptedProvider{turns: []string{calculatorCall, "done"}},
		Tools:    registry,
		Logger:   discardLogger(),
		Model:    "test-model",
		OnToolCall: func(c domain.ToolCall) {
			calls = append(calls, c.Tool)
		},
		OnToolResult: func(c domain.ToolCall, r *domain.ToolResult) {
			results = append(results, r.Content)
		},
	})

	collect(t, loop.Run(context.Background(), "go"))

	if len(calls) != 1 || calls[0] != "calculator" {
		t.Errorf("OnToolCall saw %v, want [calculator]", calls)
	}
	if len(results) != 1 || !strings.Contains(results[0], "5") {
		t.Errorf("OnToolResult saw %v, want the result containing 5", results)
	}
}

func TestLoopProviderFailure(t *testing.T) {
	wantErr := errors.New("connection refused")
	loop, _ := newTestLoop(t, &scriptedProvider{err: wantErr}, 10)

	frags := collect(t, loop.Run(context.Background(), "go"))

	if len(frags) != 1 {
		t.Fatalf("fragments = %d, want exactly 1", len(frags))
	}
	if !errors.Is(frags[0].Err, wantErr) {
		t.Errorf("Err = %v, want %v", frags[0].Err, wantErr)
	}
}

func TestLoopMidStreamFailure(t *testing.T) {
	provider := &midStreamFailProvider{err: errors.New("stream reset")}
	loop, _ := newTestLoop(t, provider, 10)

	frags := collect(t, loop.Run(context.Background(), "go"))

	last := frags[len(frags)-1]
	if last.Err == nil {
		t.Fatalf("last fragment = %+v, want Err set", last)
	}
}

type midStreamFailProvider struct {
	err error
}

func (p *midStreamFailProvider) Name() string { return "midfail" }

func (p *midStreamFailProvider) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamDelta, error) {
	ch := make(chan domain.StreamDelta, 2)
	ch <- domain.StreamDelta{Content: "partial"}
	ch <- domain.StreamDelta{Err: p.err}
	close(ch)
	return ch, nil
}

func TestLoopToolFailureFoldsBack(t *testing.T) {
	turn := "```json\n" + `{"tool": "calculator", "parameters": {"op": "div", "a": 1, "b": 0}}` + "\n```\n"
	provider := &scriptedProvider{turns: []string{turn, "understood"}}
	loop, _ := newTestLoop(t, provider, 10)

	frags := collect(t, loop.Run(context.Background(), "go"))

	var notice string
	for _, f := range frags {
		if f.Err != nil {
			t.Fatalf("tool failure must not abort the run: %v", f.Err)
		}
		if f.Type == domain.FragmentNotice {
			notice = f.Text
		}
	}
	if !strings.Contains(notice, "failed") {
		t.Errorf("notice = %q, want a tool failure notice", notice)
	}
	if provider.calls != 2 {
		t.Errorf("model calls = %d, want 2 (loop continues after tool failure)", provider.calls)
	}
}

func TestLoopReset(t *testing.T) {
	provider := &scriptedProvider{turns: []string{"hello", "again"}}
	loop, _ := newTestLoop(t, provider, 10)

	collect(t, loop.Run(context.Background(), "hi"))
	if len(loop.History()) == 0 {
		t.Fatal("history should not be empty after a run")
	}

	loop.Reset()
	if len(loop.History()) != 0 {
		t.Errorf("history length = %d after Reset, want 0", len(loop.History()))
	}
}
