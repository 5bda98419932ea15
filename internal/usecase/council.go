package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"quorum/internal/domain"
	"quorum/internal/infra/tracer"
)

const councilSchemaVersion = 1

// CouncilManager owns every council session actor: one in-memory state per
// identity, strictly serialized through the locker, persisted whole to the
// snapshot store after each mutating operation.
type CouncilManager struct {
	locker *ActorLocker
	store  domain.SnapshotStore
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*domain.CouncilSession
}

// NewCouncilManager creates a council manager backed by the given store.
func NewCouncilManager(store domain.SnapshotStore, logger *slog.Logger) *CouncilManager {
	return &CouncilManager{
		locker:   NewActorLocker(),
		store:    store,
		logger:   logger,
		sessions: make(map[string]*domain.CouncilSession),
	}
}

// CouncilInit holds the Initialize payload.
type CouncilInit struct {
	Question          string   `json:"question"`
	MaxRounds         int      `json:"max_rounds"`
	CreatedBy         string   `json:"created_by"`
	AgentIDs          []string `json:"agent_ids"`
	AttachedFiles     []string `json:"attached_files,omitempty"`
	AttachedArtifacts []string `json:"attached_artifacts,omitempty"`
}

// Initialize allocates (or fully resets) the session for id. An empty id
// gets a generated identity. Calling Initialize on an existing session
// overwrites the whole state; it is a reset, not a transition.
func (m *CouncilManager) Initialize(ctx context.Context, id string, init CouncilInit) (*domain.CouncilSession, error) {
	now := time.Now().UTC()
	if id == "" {
		id = generateULID(now)
	}
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "council.initialize")
	defer span.End()

	maxRounds := init.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 3
	}

	s := &domain.CouncilSession{
		Version:           councilSchemaVersion,
		ID:                id,
		Question:          init.Question,
		Stage:             domain.StageInitializing,
		MaxRounds:         maxRounds,
		CurrentRound:      0,
		CreatedBy:         init.CreatedBy,
		AgentIDs:          dedupe(init.AgentIDs),
		AttachedFiles:     dedupe(init.AttachedFiles),
		AttachedArtifacts: dedupe(init.AttachedArtifacts),
		Deliberations:     []domain.Deliberation{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.persist(ctx, s); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	m.logger.Info("council session initialized", "id", id, "max_rounds", maxRounds, "agents", len(s.AgentIDs))
	return s.Clone(), nil
}

// AddDeliberation appends a contribution stamped with the current round and
// forces the stage back to deliberating, even from a synthesizing stage, so
// late contributions stay possible.
func (m *CouncilManager) AddDeliberation(ctx context.Context, id, agentID, content string) (*domain.CouncilSession, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "council.add_deliberation")
	defer span.End()

	s, err := m.getOrLoad(ctx, "Council.AddDeliberation", id)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	now := time.Now().UTC()
	s.Deliberations = append(s.Deliberations, domain.Deliberation{
		Round:     s.CurrentRound,
		AgentID:   agentID,
		Content:   content,
		Timestamp: now,
	})
	s.Stage = domain.StageDeliberating
	s.UpdatedAt = now

	if err := m.persist(ctx, s); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	m.logger.Debug("deliberation recorded", "id", id, "agent", agentID, "round", s.CurrentRound)
	return s.Clone(), nil
}

// Synthesize moves the session to round and the matching synthesizing stage.
// Rounds above MaxRounds clamp to MaxRounds; rounds below the current one
// are accepted as-is (rewinding is deliberately permitted).
func (m *CouncilManager) Synthesize(ctx context.Context, id string, round int) (*domain.CouncilSession, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "council.synthesize")
	defer span.End()

	s, err := m.getOrLoad(ctx, "Council.Synthesize", id)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	if round >= s.MaxRounds {
		s.CurrentRound = s.MaxRounds
		s.Stage = domain.StageSynthesizingFinal
	} else {
		s.CurrentRound = round
		s.Stage = domain.StageSynthesizingRound
	}
	s.UpdatedAt = time.Now().UTC()

	if err := m.persist(ctx, s); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	m.logger.Debug("council synthesizing", "id", id, "round", s.CurrentRound, "stage", s.Stage)
	return s.Clone(), nil
}

// Complete records the final decision and metrics and marks the session
// completed. Repeated calls overwrite the previous values; there is no
// already-completed guard.
func (m *CouncilManager) Complete(ctx context.Context, id, decision string, consensusScore, confidenceLevel float64) (*domain.CouncilSession, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "council.complete")
	defer span.End()

	s, err := m.getOrLoad(ctx, "Council.Complete", id)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	s.Decision = decision
	s.ConsensusScore = consensusScore
	s.ConfidenceLevel = confidenceLevel
	s.Stage = domain.StageCompleted
	s.UpdatedAt = time.Now().UTC()

	if err := m.persist(ctx, s); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	m.logger.Info("council session completed", "id", id, "consensus_score", consensusScore)
	return s.Clone(), nil
}

// Fail marks the session failed with a reason. Terminal, like Complete.
func (m *CouncilManager) Fail(ctx context.Context, id, reason string) (*domain.CouncilSession, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "council.fail")
	defer span.End()

	s, err := m.getOrLoad(ctx, "Council.Fail", id)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	s.Stage = domain.StageFailed
	s.FailureReason = reason
	s.UpdatedAt = time.Now().UTC()

	if err := m.persist(ctx, s); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	m.logger.Warn("council session failed", "id", id, "reason", reason)
	return s.Clone(), nil
}

// Get returns the full snapshot, or ErrActorNotFound if uninitialized.
func (m *CouncilManager) Get(ctx context.Context, id string) (*domain.CouncilSession, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, err := m.getOrLoad(ctx, "Council.Get", id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// getOrLoad returns the in-memory state for id, falling back to the durable
// snapshot. Caller must hold the identity lock.
func (m *CouncilManager) getOrLoad(ctx context.Context, op, id string) (*domain.CouncilSession, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	data, found, err := m.store.Load(ctx, domain.KindCouncil, id)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if !found {
		return nil, domain.NewDomainError(op, domain.ErrActorNotFound, id)
	}
	s = &domain.CouncilSession{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, domain.WrapOp(op, err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// persist writes the full snapshot once, after all in-memory changes.
// Caller must hold the identity lock.
func (m *CouncilManager) persist(ctx context.Context, s *domain.CouncilSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return domain.WrapOp("Council.persist", err)
	}
	if err := m.store.Store(ctx, domain.KindCouncil, s.ID, data); err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return nil
}

// dedupe returns values with duplicates removed, preserving first-seen order.
func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
