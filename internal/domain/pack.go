package domain

import "time"

// PackEntry is one scored, sourced contribution in a knowledge pack.
type PackEntry struct {
	Content   string    `json:"content"`
	AgentID   string    `json:"agent_id"`
	Score     float64   `json:"score"`
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// KnowledgePack is the full snapshot of a knowledge pack actor. Content,
// ConsensusScore and EmbeddingID stay zero until Finalize. Tags, SourceFiles
// and SourceArtifacts have set semantics even though stored as slices.
type KnowledgePack struct {
	Version          int         `json:"version"`
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Content          string      `json:"content,omitempty"`
	CouncilSessionID string      `json:"council_session_id,omitempty"`
	CreatedBy        string      `json:"created_by"`
	EmbeddingID      string      `json:"embedding_id,omitempty"`
	Tags             []string    `json:"tags,omitempty"`
	IsPublic         bool        `json:"is_public,omitempty"`
	ConsensusScore   float64     `json:"consensus_score,omitempty"`
	SourceFiles      []string    `json:"source_files,omitempty"`
	SourceArtifacts  []string    `json:"source_artifacts,omitempty"`
	Entries          []PackEntry `json:"entries"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate the actor's held state.
func (p *KnowledgePack) Clone() *KnowledgePack {
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.SourceFiles = append([]string(nil), p.SourceFiles...)
	cp.SourceArtifacts = append([]string(nil), p.SourceArtifacts...)
	cp.Entries = make([]PackEntry, len(p.Entries))
	for i, e := range p.Entries {
		e.Sources = append([]string(nil), e.Sources...)
		cp.Entries[i] = e
	}
	return &cp
}

// PackStats are aggregate statistics over a pack's entries.
type PackStats struct {
	EntryCount   int     `json:"entry_count"`
	AverageScore float64 `json:"average_score"`
}
