package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"quorum/internal/domain"
	"quorum/internal/infra/tracer"
)

const packSchemaVersion = 1

// PackManager owns every knowledge pack actor, following the same
// lock/load/mutate/persist discipline as the council manager.
type PackManager struct {
	locker *ActorLocker
	store  domain.SnapshotStore
	logger *slog.Logger

	mu    sync.Mutex
	packs map[string]*domain.KnowledgePack
}

// NewPackManager creates a knowledge pack manager backed by the given store.
func NewPackManager(store domain.SnapshotStore, logger *slog.Logger) *PackManager {
	return &PackManager{
		locker: NewActorLocker(),
		store:  store,
		logger: logger,
		packs:  make(map[string]*domain.KnowledgePack),
	}
}

// PackCreate holds the Create payload.
type PackCreate struct {
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	CouncilSessionID string   `json:"council_session_id,omitempty"`
	CreatedBy        string   `json:"created_by"`
	Tags             []string `json:"tags,omitempty"`
	IsPublic         bool     `json:"is_public,omitempty"`
	SourceFiles      []string `json:"source_files,omitempty"`
	SourceArtifacts  []string `json:"source_artifacts,omitempty"`
}

// PackUpdate holds the partial Update payload. Nil fields are untouched.
type PackUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// EntryUpdate holds the partial UpdateEntry payload. Nil fields are untouched.
type EntryUpdate struct {
	Content *string   `json:"content,omitempty"`
	AgentID *string   `json:"agent_id,omitempty"`
	Score   *float64  `json:"score,omitempty"`
	Sources *[]string `json:"sources,omitempty"`
}

// Create allocates (or fully resets) the pack for id. Content,
// ConsensusScore and EmbeddingID stay zero until Finalize.
func (m *PackManager) Create(ctx context.Context, id string, create PackCreate) (*domain.KnowledgePack, error) {
	now := time.Now().UTC()
	if id == "" {
		id = generateULID(now)
	}
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "pack.create")
	defer span.End()

	p := &domain.KnowledgePack{
		Version:          packSchemaVersion,
		ID:               id,
		Title:            create.Title,
		Description:      create.Description,
		CouncilSessionID: create.CouncilSessionID,
		CreatedBy:        create.CreatedBy,
		Tags:             dedupe(create.Tags),
		IsPublic:         create.IsPublic,
		SourceFiles:      dedupe(create.SourceFiles),
		SourceArtifacts:  dedupe(create.SourceArtifacts),
		Entries:          []domain.PackEntry{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.persist(ctx, p); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	m.logger.Info("knowledge pack created", "id", id, "title", create.Title)
	return p.Clone(), nil
}

// AddEntry appends a scored, sourced entry with a server-stamped timestamp.
func (m *PackManager) AddEntry(ctx context.Context, id, content, agentID string, score float64, sources []string) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.AddEntry", id, func(p *domain.KnowledgePack) error {
		p.Entries = append(p.Entries, domain.PackEntry{
			Content:   content,
			AgentID:   agentID,
			Score:     score,
			Sources:   append([]string(nil), sources...),
			Timestamp: time.Now().UTC(),
		})
		return nil
	})
}

// Finalize sets the synthesized output fields. Finalization is signalled
// only by Content being non-empty; there is no separate flag.
func (m *PackManager) Finalize(ctx context.Context, id, content string, consensusScore float64, embeddingID string) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.Finalize", id, func(p *domain.KnowledgePack) error {
		p.Content = content
		p.ConsensusScore = consensusScore
		p.EmbeddingID = embeddingID
		return nil
	})
}

// Update shallow-merges the non-nil fields and stamps UpdatedAt.
func (m *PackManager) Update(ctx context.Context, id string, update PackUpdate) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.Update", id, func(p *domain.KnowledgePack) error {
		if update.Title != nil {
			p.Title = *update.Title
		}
		if update.Description != nil {
			p.Description = *update.Description
		}
		if update.IsPublic != nil {
			p.IsPublic = *update.IsPublic
		}
		return nil
	})
}

// UpdateEntry merges the non-nil fields into the entry at index.
func (m *PackManager) UpdateEntry(ctx context.Context, id string, index int, update EntryUpdate) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.UpdateEntry", id, func(p *domain.KnowledgePack) error {
		if index < 0 || index >= len(p.Entries) {
			return domain.NewDomainError("Pack.UpdateEntry", domain.ErrIndexOutOfRange,
				fmt.Sprintf("index %d, %d entries", index, len(p.Entries)))
		}
		e := &p.Entries[index]
		if update.Content != nil {
			e.Content = *update.Content
		}
		if update.AgentID != nil {
			e.AgentID = *update.AgentID
		}
		if update.Score != nil {
			e.Score = *update.Score
		}
		if update.Sources != nil {
			e.Sources = append([]string(nil), (*update.Sources)...)
		}
		return nil
	})
}

// RemoveEntry deletes the entry at index. Out-of-range is an error, not a
// no-op.
func (m *PackManager) RemoveEntry(ctx context.Context, id string, index int) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.RemoveEntry", id, func(p *domain.KnowledgePack) error {
		if index < 0 || index >= len(p.Entries) {
			return domain.NewDomainError("Pack.RemoveEntry", domain.ErrIndexOutOfRange,
				fmt.Sprintf("index %d, %d entries", index, len(p.Entries)))
		}
		p.Entries = append(p.Entries[:index], p.Entries[index+1:]...)
		return nil
	})
}

// AddTags unions tags into the pack's tag set.
func (m *PackManager) AddTags(ctx context.Context, id string, tags []string) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.AddTags", id, func(p *domain.KnowledgePack) error {
		p.Tags = dedupe(append(p.Tags, tags...))
		return nil
	})
}

// RemoveTags removes tags from the pack's tag set (set difference).
func (m *PackManager) RemoveTags(ctx context.Context, id string, tags []string) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.RemoveTags", id, func(p *domain.KnowledgePack) error {
		drop := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			drop[t] = struct{}{}
		}
		kept := p.Tags[:0]
		for _, t := range p.Tags {
			if _, ok := drop[t]; !ok {
				kept = append(kept, t)
			}
		}
		p.Tags = kept
		return nil
	})
}

// AddSources unions files and artifacts into the pack's source sets.
func (m *PackManager) AddSources(ctx context.Context, id string, files, artifacts []string) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.AddSources", id, func(p *domain.KnowledgePack) error {
		p.SourceFiles = dedupe(append(p.SourceFiles, files...))
		p.SourceArtifacts = dedupe(append(p.SourceArtifacts, artifacts...))
		return nil
	})
}

// UpdateConsensusScore overwrites the consensus score.
func (m *PackManager) UpdateConsensusScore(ctx context.Context, id string, score float64) (*domain.KnowledgePack, error) {
	return m.mutate(ctx, "Pack.UpdateConsensusScore", id, func(p *domain.KnowledgePack) error {
		p.ConsensusScore = score
		return nil
	})
}

// Get returns the full snapshot, or ErrActorNotFound if uninitialized.
func (m *PackManager) Get(ctx context.Context, id string) (*domain.KnowledgePack, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := m.getOrLoad(ctx, "Pack.Get", id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// SearchEntries returns entries whose content, agent id, or any source
// contains query, case-insensitively. Linear scan, no ranking.
func (m *PackManager) SearchEntries(ctx context.Context, id, query string) ([]domain.PackEntry, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := m.getOrLoad(ctx, "Pack.SearchEntries", id)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var out []domain.PackEntry
	for _, e := range p.Entries {
		if entryMatches(e, q) {
			e.Sources = append([]string(nil), e.Sources...)
			out = append(out, e)
		}
	}
	return out, nil
}

func entryMatches(e domain.PackEntry, q string) bool {
	if strings.Contains(strings.ToLower(e.Content), q) {
		return true
	}
	if strings.Contains(strings.ToLower(e.AgentID), q) {
		return true
	}
	for _, s := range e.Sources {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// GetStats returns the entry count and mean score. The mean over zero
// entries is 0; the denominator is floored at 1 to keep the division total.
func (m *PackManager) GetStats(ctx context.Context, id string) (*domain.PackStats, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := m.getOrLoad(ctx, "Pack.GetStats", id)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, e := range p.Entries {
		total += e.Score
	}
	denom := len(p.Entries)
	if denom == 0 {
		denom = 1
	}
	return &domain.PackStats{
		EntryCount:   len(p.Entries),
		AverageScore: total / float64(denom),
	}, nil
}

// mutate is the shared read-modify-write path: lock identity, load, apply,
// stamp UpdatedAt, persist once, return a copy.
func (m *PackManager) mutate(ctx context.Context, op, id string, apply func(*domain.KnowledgePack) error) (*domain.KnowledgePack, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "pack.mutate", trace.WithAttributes(tracer.StringAttr("pack.op", op)))
	defer span.End()

	p, err := m.getOrLoad(ctx, op, id)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	if err := apply(p); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()

	if err := m.persist(ctx, p); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	m.logger.Debug("knowledge pack updated", "id", id, "op", op)
	return p.Clone(), nil
}

func (m *PackManager) getOrLoad(ctx context.Context, op, id string) (*domain.KnowledgePack, error) {
	m.mu.Lock()
	p, ok := m.packs[id]
	m.mu.Unlock()
	if ok {
		return p, nil
	}

	data, found, err := m.store.Load(ctx, domain.KindPack, id)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if !found {
		return nil, domain.NewDomainError(op, domain.ErrActorNotFound, id)
	}
	p = &domain.KnowledgePack{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, domain.WrapOp(op, err)
	}

	m.mu.Lock()
	m.packs[id] = p
	m.mu.Unlock()
	return p, nil
}

func (m *PackManager) persist(ctx context.Context, p *domain.KnowledgePack) error {
	data, err := json.Marshal(p)
	if err != nil {
		return domain.WrapOp("Pack.persist", err)
	}
	if err := m.store.Store(ctx, domain.KindPack, p.ID, data); err != nil {
		return err
	}
	m.mu.Lock()
	m.packs[p.ID] = p
	m.mu.Unlock()
	return nil
}
