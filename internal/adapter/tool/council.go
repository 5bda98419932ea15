package tool

import (
	"context"
	"encoding/json"

	"quorum/internal/domain"
	"quorum/internal/usecase"
)

type councilParams struct {
	Action          string   `json:"action"`
	SessionID       string   `json:"session_id"`
	Question        string   `json:"question"`
	MaxRounds       int      `json:"max_rounds"`
	CreatedBy       string   `json:"created_by"`
	AgentIDs        []string `json:"agent_ids"`
	AgentID         string   `json:"agent_id"`
	Content         string   `json:"content"`
	Round           int      `json:"round"`
	Decision        string   `json:"decision"`
	ConsensusScore  float64  `json:"consensus_score"`
	ConfidenceLevel float64  `json:"confidence_level"`
	Reason          string   `json:"reason"`
}

// CouncilTool proxies council session operations so the model can drive a
// deliberation from inside the agent loop.
type CouncilTool struct {
	manager *usecase.CouncilManager
	actions ActionMap[councilParams]
}

// NewCouncilTool creates the council proxy tool.
func NewCouncilTool(manager *usecase.CouncilManager) *CouncilTool {
	t := &CouncilTool{manager: manager}
	t.actions = ActionMap[councilParams]{
		"initialize": t.initialize,
		"deliberate": t.deliberate,
		"synthesize": t.synthesize,
		"complete":   t.complete,
		"fail":       t.fail,
		"status":     t.status,
	}
	return t
}

func (t *CouncilTool) ID() string   { return "council" }
func (t *CouncilTool) Name() string { return "Council" }

func (t *CouncilTool) Description() string {
	return "Manage a council deliberation session: initialize, deliberate, synthesize, complete, fail, status."
}

func (t *CouncilTool) Parameters() *domain.ObjectSchema {
	return domain.Object(
		domain.Field{Name: "action", Type: domain.EnumNode{Options: []string{
			"initialize", "deliberate", "synthesize", "complete", "fail", "status",
		}}, Required: true, Description: "Operation to perform."},
		domain.Field{Name: "session_id", Type: domain.StringNode{}, Description: "Session identity. Empty on initialize generates one."},
		domain.Field{Name: "question", Type: domain.StringNode{}, Description: "Question under deliberation (initialize)."},
		domain.Field{Name: "max_rounds", Type: domain.IntegerNode{}, Description: "Round budget, default 3 (initialize)."},
		domain.Field{Name: "created_by", Type: domain.StringNode{}, Description: "Creator identity (initialize)."},
		domain.Field{Name: "agent_ids", Type: domain.ArrayNode{Elem: domain.StringNode{}}, Description: "Participating agents (initialize)."},
		domain.Field{Name: "agent_id", Type: domain.StringNode{}, Description: "Contributing agent (deliberate)."},
		domain.Field{Name: "content", Type: domain.StringNode{}, Description: "Deliberation content (deliberate)."},
		domain.Field{Name: "round", Type: domain.IntegerNode{}, Description: "Round to synthesize (synthesize)."},
		domain.Field{Name: "decision", Type: domain.StringNode{}, Description: "Final decision text (complete)."},
		domain.Field{Name: "consensus_score", Type: domain.NumberNode{}, Description: "Agreement strength (complete)."},
		domain.Field{Name: "confidence_level", Type: domain.NumberNode{}, Description: "Decision confidence (complete)."},
		domain.Field{Name: "reason", Type: domain.StringNode{}, Description: "Failure reason (fail)."},
	)
}

func (t *CouncilTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.ID(), params, Dispatch(func(p councilParams) string { return p.Action }, t.actions))
}

func (t *CouncilTool) initialize(ctx context.Context, p councilParams) (any, error) {
	return t.manager.Initialize(ctx, p.SessionID, usecase.CouncilInit{
		Question:  p.Question,
		MaxRounds: p.MaxRounds,
		CreatedBy: p.CreatedBy,
		AgentIDs:  p.AgentIDs,
	})
}

func (t *CouncilTool) deliberate(ctx context.Context, p councilParams) (any, error) {
	return t.manager.AddDeliberation(ctx, p.SessionID, p.AgentID, p.Content)
}

func (t *CouncilTool) synthesize(ctx context.Context, p councilParams) (any, error) {
	return t.manager.Synthesize(ctx, p.SessionID, p.Round)
}

func (t *CouncilTool) complete(ctx context.Context, p councilParams) (any, error) {
	return t.manager.Complete(ctx, p.SessionID, p.Decision, p.ConsensusScore, p.ConfidenceLevel)
}

func (t *CouncilTool) fail(ctx context.Context, p councilParams) (any, error) {
	return t.manager.Fail(ctx, p.SessionID, p.Reason)
}

func (t *CouncilTool) status(ctx context.Context, p councilParams) (any, error) {
	return t.manager.Get(ctx, p.SessionID)
}
