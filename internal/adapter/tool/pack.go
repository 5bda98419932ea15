package tool

import (
	"context"
	"encoding/json"

	"quorum/internal/domain"
	"quorum/internal/usecase"
)

type packParams struct {
	Action           string   `json:"action"`
	PackID           string   `json:"pack_id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	CouncilSessionID string   `json:"council_session_id"`
	CreatedBy        string   `json:"created_by"`
	Content          string   `json:"content"`
	AgentID          string   `json:"agent_id"`
	Score            float64  `json:"score"`
	Sources          []string `json:"sources"`
	ConsensusScore   float64  `json:"consensus_score"`
	EmbeddingID      string   `json:"embedding_id"`
	Query            string   `json:"query"`
	Index            int      `json:"index"`
	Tags             []string `json:"tags"`
	Files            []string `json:"files"`
	Artifacts        []string `json:"artifacts"`
}

// PackTool proxies knowledge pack operations into the actor manager.
type PackTool struct {
	manager *usecase.PackManager
	actions ActionMap[packParams]
}

// NewPackTool creates the knowledge pack proxy tool.
func NewPackTool(manager *usecase.PackManager) *PackTool {
	t := &PackTool{manager: manager}
	t.actions = ActionMap[packParams]{
		"create":       t.create,
		"add_entry":    t.addEntry,
		"finalize":     t.finalize,
		"get":          t.get,
		"search":       t.search,
		"remove_entry": t.removeEntry,
		"add_tags":     t.addTags,
		"remove_tags":  t.removeTags,
		"add_sources":  t.addSources,
		"update_score": t.updateScore,
		"stats":        t.stats,
	}
	return t
}

func (t *PackTool) ID() string   { return "knowledge_pack" }
func (t *PackTool) Name() string { return "Knowledge Pack" }

func (t *PackTool) Description() string {
	return "Manage a knowledge pack: create, add_entry, finalize, get, search, remove_entry, add_tags, remove_tags, add_sources, update_score, stats."
}

func (t *PackTool) Parameters() *domain.ObjectSchema {
	return domain.Object(
		domain.Field{Name: "action", Type: domain.EnumNode{Options: []string{
			"create", "add_entry", "finalize", "get", "search", "remove_entry",
			"add_tags", "remove_tags", "add_sources", "update_score", "stats",
		}}, Required: true, Description: "Operation to perform."},
		domain.Field{Name: "pack_id", Type: domain.StringNode{}, Description: "Pack identity. Empty on create generates one."},
		domain.Field{Name: "title", Type: domain.StringNode{}, Description: "Pack title (create)."},
		domain.Field{Name: "description", Type: domain.StringNode{}, Description: "Pack description (create)."},
		domain.Field{Name: "council_session_id", Type: domain.StringNode{}, Description: "Originating council session (create)."},
		domain.Field{Name: "created_by", Type: domain.StringNode{}, Description: "Creator identity (create)."},
		domain.Field{Name: "content", Type: domain.StringNode{}, Description: "Entry content (add_entry) or synthesized content (finalize)."},
		domain.Field{Name: "agent_id", Type: domain.StringNode{}, Description: "Contributing agent (add_entry)."},
		domain.Field{Name: "score", Type: domain.NumberNode{}, Description: "Entry score (add_entry)."},
		domain.Field{Name: "sources", Type: domain.ArrayNode{Elem: domain.StringNode{}}, Description: "Entry sources (add_entry)."},
		domain.Field{Name: "consensus_score", Type: domain.NumberNode{}, Description: "Consensus score (finalize, update_score)."},
		domain.Field{Name: "embedding_id", Type: domain.StringNode{}, Description: "Embedding reference (finalize)."},
		domain.Field{Name: "query", Type: domain.StringNode{}, Description: "Search query (search)."},
		domain.Field{Name: "index", Type: domain.IntegerNode{}, Description: "Entry index (remove_entry)."},
		domain.Field{Name: "tags", Type: domain.ArrayNode{Elem: domain.StringNode{}}, Description: "Tags (create, add_tags, remove_tags)."},
		domain.Field{Name: "files", Type: domain.ArrayNode{Elem: domain.StringNode{}}, Description: "Source files (add_sources)."},
		domain.Field{Name: "artifacts", Type: domain.ArrayNode{Elem: domain.StringNode{}}, Description: "Source artifacts (add_sources)."},
	)
}

func (t *PackTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, t.ID(), params, Dispatch(func(p packParams) string { return p.Action }, t.actions))
}

func (t *PackTool) create(ctx context.Context, p packParams) (any, error) {
	return t.manager.Create(ctx, p.PackID, usecase.PackCreate{
		Title:            p.Title,
		Description:      p.Description,
		CouncilSessionID: p.CouncilSessionID,
		CreatedBy:        p.CreatedBy,
		Tags:             p.Tags,
	})
}

func (t *PackTool) addEntry(ctx context.Context, p packParams) (any, error) {
	return t.manager.AddEntry(ctx, p.PackID, p.Content, p.AgentID, p.Score, p.Sources)
}

func (t *PackTool) finalize(ctx context.Context, p packParams) (any, error) {
	return t.manager.Finalize(ctx, p.PackID, p.Content, p.ConsensusScore, p.EmbeddingID)
}

func (t *PackTool) get(ctx context.Context, p packParams) (any, error) {
	return t.manager.Get(ctx, p.PackID)
}

func (t *PackTool) search(ctx context.Context, p packParams) (any, error) {
	entries, err := t.manager.SearchEntries(ctx, p.PackID, p.Query)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return "no entries matched", nil
	}
	return entries, nil
}

func (t *PackTool) removeEntry(ctx context.Context, p packParams) (any, error) {
	return t.manager.RemoveEntry(ctx, p.PackID, p.Index)
}

func (t *PackTool) addTags(ctx context.Context, p packParams) (any, error) {
	return t.manager.AddTags(ctx, p.PackID, p.Tags)
}

func (t *PackTool) removeTags(ctx context.Context, p packParams) (any, error) {
	return t.manager.RemoveTags(ctx, p.PackID, p.Tags)
}

func (t *PackTool) addSources(ctx context.Context, p packParams) (any, error) {
	return t.manager.AddSources(ctx, p.PackID, p.Files, p.Artifacts)
}

func (t *PackTool) updateScore(ctx context.Context, p packParams) (any, error) {
	return t.manager.UpdateConsensusScore(ctx, p.PackID, p.ConsensusScore)
}

func (t *PackTool) stats(ctx context.Context, p packParams) (any, error) {
	return t.manager.GetStats(ctx, p.PackID)
}
