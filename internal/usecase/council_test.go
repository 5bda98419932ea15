package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"quorum/internal/domain"
)

// memStore is an in-memory SnapshotStore for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]json.RawMessage)}
}

func (s *memStore) key(kind domain.SnapshotKind, id string) string {
	return string(kind) + "/" + id
}

func (s *memStore) Load(_ context.Context, kind domain.SnapshotKind, id string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[s.key(kind, id)]
	return data, ok, nil
}

func (s *memStore) Store(_ context.Context, kind domain.SnapshotKind, id string, data json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.key(kind, id)] = append(json.RawMessage(nil), data...)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCouncilInitialize(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())

	s, err := m.Initialize(context.Background(), "c1", CouncilInit{
		Question:  "ship it?",
		CreatedBy: "u1",
		AgentIDs:  []string{"a1", "a2", "a1"},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if s.Stage != domain.StageInitializing {
		t.Errorf("Stage = %q, want initializing", s.Stage)
	}
	if s.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want default 3", s.MaxRounds)
	}
	if s.CurrentRound != 0 {
		t.Errorf("CurrentRound = %d, want 0", s.CurrentRound)
	}
	if len(s.AgentIDs) != 2 {
		t.Errorf("AgentIDs = %v, want deduped [a1 a2]", s.AgentIDs)
	}
}

func TestCouncilInitializeGeneratesID(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())

	s, err := m.Initialize(context.Background(), "", CouncilInit{Question: "q"})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if len(s.ID) != 26 {
		t.Errorf("ID should be a 26-char ULID, got %q", s.ID)
	}
}

func TestCouncilInitializeResets(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "c1", CouncilInit{Question: "first"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := m.AddDeliberation(ctx, "c1", "a1", "point"); err != nil {
		t.Fatalf("AddDeliberation: %v", err)
	}

	s, err := m.Initialize(ctx, "c1", CouncilInit{Question: "second", MaxRounds: 5})
	if err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	if s.Question != "second" || s.MaxRounds != 5 {
		t.Errorf("reset did not overwrite: %+v", s)
	}
	if len(s.Deliberations) != 0 {
		t.Errorf("Deliberations should be empty after reset, got %d", len(s.Deliberations))
	}
	if s.Stage != domain.StageInitializing {
		t.Errorf("Stage = %q, want initializing", s.Stage)
	}
}

func TestCouncilAddDeliberationStampsCurrentRound(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "c1", CouncilInit{Question: "q"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := m.Synthesize(ctx, "c1", 2); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	s, err := m.AddDeliberation(ctx, "c1", "a1", "late thought")
	if err != nil {
		t.Fatalf("AddDeliberation: %v", err)
	}
	if got := s.Deliberations[0].Round; got != 2 {
		t.Errorf("entry Round = %d, want 2", got)
	}
	// A late contribution pulls the stage back from synthesizing.
	if s.Stage != domain.StageDeliberating {
		t.Errorf("Stage = %q, want deliberating", s.Stage)
	}
}

func TestCouncilAddDeliberationNotFound(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())

	_, err := m.AddDeliberation(context.Background(), "missing", "a1", "x")
	if !errors.Is(err, domain.ErrActorNotFound) {
		t.Errorf("err = %v, want ErrActorNotFound", err)
	}
}

func TestCouncilSynthesizeStages(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "c1", CouncilInit{Question: "q", MaxRounds: 3}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	s, err := m.Synthesize(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("Synthesize(2): %v", err)
	}
	if s.Stage != domain.StageSynthesizingRound || s.CurrentRound != 2 {
		t.Errorf("got stage=%q round=%d, want synthesizing_round round 2", s.Stage, s.CurrentRound)
	}

	s, err = m.Synthesize(ctx, "c1", 3)
	if err != nil {
		t.Fatalf("Synthesize(3): %v", err)
	}
	if s.Stage != domain.StageSynthesizingFinal || s.CurrentRound != 3 {
		t.Errorf("got stage=%q round=%d, want synthesizing_final round 3", s.Stage, s.CurrentRound)
	}

	// Rewinding is allowed.
	s, err = m.Synthesize(ctx, "c1", 1)
	if err != nil {
		t.Fatalf("Synthesize(1): %v", err)
	}
	if s.Stage != domain.StageSynthesizingRound || s.CurrentRound != 1 {
		t.Errorf("rewind: got stage=%q round=%d", s.Stage, s.CurrentRound)
	}

	// Rounds above the budget clamp to MaxRounds.
	s, err = m.Synthesize(ctx, "c1", 9)
	if err != nil {
		t.Fatalf("Synthesize(9): %v", err)
	}
	if s.CurrentRound != 3 || s.Stage != domain.StageSynthesizingFinal {
		t.Errorf("clamp: got stage=%q round=%d, want synthesizing_final round 3", s.Stage, s.CurrentRound)
	}
}

func TestCouncilCompleteOverwrites(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "c1", CouncilInit{Question: "q"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := m.Complete(ctx, "c1", "yes", 0.8, 0.9); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	s, err := m.Complete(ctx, "c1", "no", 0.5, 0.4)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if s.Decision != "no" || s.ConsensusScore != 0.5 {
		t.Errorf("second Complete should overwrite, got %+v", s)
	}
	if s.Stage != domain.StageCompleted {
		t.Errorf("Stage = %q, want completed", s.Stage)
	}
}

func TestCouncilFail(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "c1", CouncilInit{Question: "q"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	s, err := m.Fail(ctx, "c1", "timeout waiting for agents")
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if s.Stage != domain.StageFailed || s.FailureReason != "timeout waiting for agents" {
		t.Errorf("got stage=%q reason=%q", s.Stage, s.FailureReason)
	}
}

func TestCouncilGetNotFound(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())

	_, err := m.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrActorNotFound) {
		t.Errorf("err = %v, want ErrActorNotFound", err)
	}
}

func TestCouncilLoadsFromStore(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	first := NewCouncilManager(store, testLogger())
	if _, err := first.Initialize(ctx, "c1", CouncilInit{Question: "persisted?"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// A fresh manager sees the durable snapshot, not just memory.
	second := NewCouncilManager(store, testLogger())
	s, err := second.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Question != "persisted?" {
		t.Errorf("Question = %q", s.Question)
	}
}

func TestCouncilCloneIsolation(t *testing.T) {
	m := NewCouncilManager(newMemStore(), testLogger())
	ctx := context.Background()

	if _, err := m.Initialize(ctx, "c1", CouncilInit{Question: "q"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	s1, err := m.AddDeliberation(ctx, "c1", "a1", "original")
	if err != nil {
		t.Fatalf("AddDeliberation: %v", err)
	}
	s1.Deliberations[0].Content = "mutated"

	s2, err := m.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s2.Deliberations[0].Content != "original" {
		t.Error("returned snapshot shares memory with manager state")
	}
}
