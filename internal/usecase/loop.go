package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"quorum/internal/domain"
	"quorum/internal/infra/tracer"
)

const defaultMaxIterations = 10

// ToolRegistry is the loop's view of the tool catalog.
type ToolRegistry interface {
	Register(t domain.Tool)
	Get(id string) (domain.Tool, error)
	Validate(id string, raw json.RawMessage) error
	IDs() []string
	Describe() string
}

// LoopDeps carries everything the agent loop needs. All wiring is explicit;
// there are no package-level instances.
type LoopDeps struct {
	Provider domain.StreamProvider
	Tools    ToolRegistry
	Logger   *slog.Logger

	Model         string
	SystemPrompt  string
	MaxIterations int // <= 0 means the default of 10
	Temperature   float64
	MaxTokens     int

	// Optional observers, invoked synchronously from the loop goroutine.
	OnToolCall   func(call domain.ToolCall)
	OnToolResult func(call domain.ToolCall, result *domain.ToolResult)
	OnFinish     func(reason string)
}

// Loop drives the model/tool conversation. One instance serves one
// conversation; Run must not be invoked concurrently on the same instance.
type Loop struct {
	deps LoopDeps

	mu      sync.Mutex
	history []domain.Message
	stopped atomic.Bool
}

// NewLoop builds a loop and registers the built-in finish tool into the
// registry. The finish tool's only effect is to raise the loop's stop flag.
func NewLoop(deps LoopDeps) *Loop {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = defaultMaxIterations
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	l := &Loop{deps: deps}
	deps.Tools.Register(&finishTool{loop: l})
	return l
}

// Stop raises the cooperative stop flag. It is observed at the top of the
// next iteration; a stream already in flight is not interrupted.
func (l *Loop) Stop() {
	l.stopped.Store(true)
}

// Reset clears the conversation history and the stop flag.
func (l *Loop) Reset() {
	l.mu.Lock()
	l.history = nil
	l.mu.Unlock()
	l.stopped.Store(false)
}

// History returns a copy of the conversation so far.
func (l *Loop) History() []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Message(nil), l.history...)
}

// Run appends the user turn and drives the conversation until the model
// stops calling tools, the finish tool fires, Stop is called, or the
// iteration budget runs out. Fragments are delivered as they are produced;
// the channel closes when the run ends. A model failure is delivered as a
// final fragment with Err set.
func (l *Loop) Run(ctx context.Context, input string) <-chan domain.Fragment {
	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		l.run(ctx, input, out)
	}()
	return out
}

func (l *Loop) run(ctx context.Context, input string, out chan<- domain.Fragment) {
	ctx, span := tracer.StartSpan(ctx, "loop.run")
	defer span.End()

	l.append(domain.RoleUser, input)

	for iter := 0; iter < l.deps.MaxIterations; iter++ {
		if l.stopped.Load() || ctx.Err() != nil {
			return
		}

		turn, failed := l.streamTurn(ctx, out)
		if failed {
			return
		}
		l.append(domain.RoleAssistant, turn)

		call, ok := parseToolCall(turn)
		if !ok {
			// No tool call means the model is done talking.
			tracer.SetOK(span)
			return
		}

		tl, err := l.deps.Tools.Get(call.Tool)
		if err != nil {
			msg := fmt.Sprintf("unknown tool %q. Valid tool ids: %s",
				call.Tool, strings.Join(l.deps.Tools.IDs(), ", "))
			l.deps.Logger.Warn("unknown tool requested", "tool", call.Tool)
			out <- domain.Fragment{Type: domain.FragmentNotice, Text: msg}
			l.append(domain.RoleUser, msg)
			continue
		}

		if err := l.deps.Tools.Validate(call.Tool, call.Parameters); err != nil {
			msg := err.Error()
			l.deps.Logger.Warn("tool parameters rejected", "tool", call.Tool, "error", err)
			out <- domain.Fragment{Type: domain.FragmentNotice, Text: msg}
			l.append(domain.RoleUser, msg)
			continue
		}

		if l.deps.OnToolCall != nil {
			l.deps.OnToolCall(call)
		}
		result, execErr := l.executeTool(ctx, tl, call)
		if l.deps.OnToolResult != nil {
			l.deps.OnToolResult(call, result)
		}

		if call.Tool == domain.FinishToolID {
			reason := finishReason(call.Parameters)
			if l.deps.OnFinish != nil {
				l.deps.OnFinish(reason)
			}
			out <- domain.Fragment{Type: domain.FragmentNotice, Text: "finished: " + reason}
			tracer.SetOK(span)
			return
		}

		if execErr != nil || result == nil || result.IsError {
			detail := "tool returned no result"
			if execErr != nil {
				detail = execErr.Error()
			} else if result != nil {
				detail = result.Content
			}
			msg := fmt.Sprintf("tool %q failed: %s", call.Tool, detail)
			l.deps.Logger.Warn("tool execution failed", "tool", call.Tool, "detail", detail)
			out <- domain.Fragment{Type: domain.FragmentNotice, Text: msg}
			l.append(domain.RoleUser, msg)
			continue
		}

		out <- domain.Fragment{Type: domain.FragmentToolResult, Text: result.Content}
		l.append(domain.RoleUser, fmt.Sprintf("Tool %q result:\n%s", call.Tool, result.Content))
	}

	if !l.stopped.Load() {
		l.deps.Logger.Info("iteration budget exhausted", "max_iterations", l.deps.MaxIterations)
		out <- domain.Fragment{Type: domain.FragmentNotice, Text: "max iterations reached"}
	}
}

// streamTurn runs one model call, forwarding deltas as they arrive and
// accumulating the full turn. failed=true means a model failure was emitted
// and the run must end.
func (l *Loop) streamTurn(ctx context.Context, out chan<- domain.Fragment) (string, bool) {
	ctx, span := tracer.StartSpan(ctx, "loop.model_turn")
	defer span.End()

	req := domain.ChatRequest{
		Model:       l.deps.Model,
		System:      l.systemInstruction(),
		Messages:    l.History(),
		MaxTokens:   l.deps.MaxTokens,
		Temperature: l.deps.Temperature,
	}
	deltas, err := l.deps.Provider.ChatStream(ctx, req)
	if err != nil {
		tracer.RecordError(span, err)
		out <- domain.Fragment{Err: err}
		return "", true
	}

	var b strings.Builder
	for d := range deltas {
		if d.Err != nil {
			tracer.RecordError(span, d.Err)
			out <- domain.Fragment{Err: d.Err}
			return "", true
		}
		if d.Content != "" {
			b.WriteString(d.Content)
			out <- domain.Fragment{Type: domain.FragmentText, Text: d.Content}
		}
		if d.Done {
			break
		}
	}
	tracer.SetOK(span)
	return b.String(), false
}

func (l *Loop) executeTool(ctx context.Context, t domain.Tool, call domain.ToolCall) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, "loop.tool_execute",
		trace.WithAttributes(tracer.StringAttr("tool.id", call.Tool)))
	defer span.End()

	result, err := t.Execute(ctx, call.Parameters)
	if err != nil {
		tracer.RecordError(span, err)
		return result, err
	}
	tracer.SetOK(span)
	return result, nil
}

func (l *Loop) append(role, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = append(l.history, domain.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// systemInstruction rebuilds the full system prompt every iteration so that
// tools registered mid-conversation are visible to the model.
func (l *Loop) systemInstruction() string {
	var b strings.Builder
	if l.deps.SystemPrompt != "" {
		b.WriteString(l.deps.SystemPrompt)
		b.WriteString("\n\n")
	}
	if desc := l.deps.Tools.Describe(); desc != "" {
		b.WriteString("You have access to the following tools:\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	b.WriteString(toolCallContract)
	return b.String()
}

const toolCallContract = `To invoke a tool, emit a single fenced code block containing a JSON object ` +
	`with exactly two fields: "tool" (the tool id) and "parameters" (an object). Example:

` + "```json" + `
{"tool": "calculator", "parameters": {"op": "add", "a": 2, "b": 3}}
` + "```" + `

Only the first such block in your reply is honored. To end the conversation, ` +
	`invoke the "finish" tool with a "reason" string.`

// parseToolCall scans the turn for fenced code blocks and returns the first
// whose body is a JSON object with exactly the fields "tool" and
// "parameters". Fence info strings other than "", "json" and "tool"
// disqualify a block; a malformed body skips to the next block.
func parseToolCall(turn string) (domain.ToolCall, bool) {
	lines := strings.Split(turn, "\n")
	for i := 0; i < len(lines); i++ {
		info, ok := fenceOpen(lines[i])
		if !ok {
			continue
		}
		var body []string
		closed := false
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				closed = true
				break
			}
			body = append(body, lines[j])
		}
		i = j
		if !closed || !fenceInfoAllowed(info) {
			continue
		}
		if call, ok := decodeToolCall(strings.Join(body, "\n")); ok {
			return call, true
		}
	}
	return domain.ToolCall{}, false
}

func fenceOpen(line string) (info string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "```") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, "```")), true
}

func fenceInfoAllowed(info string) bool {
	return info == "" || info == "json" || info == "tool"
}

func decodeToolCall(body string) (domain.ToolCall, bool) {
	var call domain.ToolCall
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&call); err != nil {
		return domain.ToolCall{}, false
	}
	if call.Tool == "" {
		return domain.ToolCall{}, false
	}
	if len(call.Parameters) == 0 {
		call.Parameters = json.RawMessage(`{}`)
	} else if params := strings.TrimSpace(string(call.Parameters)); !strings.HasPrefix(params, "{") {
		return domain.ToolCall{}, false
	}
	return call, true
}

func finishReason(raw json.RawMessage) string {
	var p struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.Reason == "" {
		return "(no reason given)"
	}
	return p.Reason
}

// finishTool ends the loop cooperatively. It is registered by NewLoop and
// not exported anywhere else.
type finishTool struct {
	loop *Loop
}

func (t *finishTool) ID() string          { return domain.FinishToolID }
func (t *finishTool) Name() string        { return "Finish" }
func (t *finishTool) Description() string { return "End the conversation, giving a short reason." }

func (t *finishTool) Parameters() *domain.ObjectSchema {
	return domain.Object(domain.Field{
		Name:        "reason",
		Description: "Why the conversation is complete.",
		Type:        domain.StringNode{},
		Required:    true,
	})
}

func (t *finishTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	t.loop.Stop()
	return &domain.ToolResult{Content: "conversation finished"}, nil
}
