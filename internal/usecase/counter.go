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

const counterSchemaVersion = 1

// CounterManager owns the counter actors. Counters are the smallest actor
// kind and exist mostly to exercise the persistence path end to end.
type CounterManager struct {
	locker *ActorLocker
	store  domain.SnapshotStore
	logger *slog.Logger

	mu       sync.Mutex
	counters map[string]*domain.Counter
}

// NewCounterManager creates a counter manager backed by the given store.
func NewCounterManager(store domain.SnapshotStore, logger *slog.Logger) *CounterManager {
	return &CounterManager{
		locker:   NewActorLocker(),
		store:    store,
		logger:   logger,
		counters: make(map[string]*domain.Counter),
	}
}

// Initialize creates (or resets) the counter at id with the given value.
func (m *CounterManager) Initialize(ctx context.Context, id string, value int64) (*domain.Counter, error) {
	now := time.Now().UTC()
	if id == "" {
		id = generateULID(now)
	}
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "counter.initialize")
	defer span.End()

	c := &domain.Counter{
		Version:   counterSchemaVersion,
		ID:        id,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.persist(ctx, c); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	m.logger.Debug("counter initialized", "id", id, "value", value)
	out := *c
	return &out, nil
}

// Increment adds delta to the counter's value.
func (m *CounterManager) Increment(ctx context.Context, id string, delta int64) (*domain.Counter, error) {
	return m.mutate(ctx, "Counter.Increment", id, delta)
}

// Decrement subtracts delta from the counter's value.
func (m *CounterManager) Decrement(ctx context.Context, id string, delta int64) (*domain.Counter, error) {
	return m.mutate(ctx, "Counter.Decrement", id, -delta)
}

// Get returns the counter snapshot, or ErrActorNotFound if uninitialized.
func (m *CounterManager) Get(ctx context.Context, id string) (*domain.Counter, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := m.getOrLoad(ctx, "Counter.Get", id)
	if err != nil {
		return nil, err
	}
	out := *c
	return &out, nil
}

func (m *CounterManager) mutate(ctx context.Context, op, id string, delta int64) (*domain.Counter, error) {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, span := tracer.StartSpan(ctx, "counter.mutate")
	defer span.End()

	c, err := m.getOrLoad(ctx, op, id)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	c.Value += delta
	c.UpdatedAt = time.Now().UTC()

	if err := m.persist(ctx, c); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	out := *c
	return &out, nil
}

func (m *CounterManager) getOrLoad(ctx context.Context, op, id string) (*domain.Counter, error) {
	m.mu.Lock()
	c, ok := m.counters[id]
	m.mu.Unlock()
	if ok {
		return c, nil
	}

	data, found, err := m.store.Load(ctx, domain.KindCounter, id)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if !found {
		return nil, domain.NewDomainError(op, domain.ErrActorNotFound, id)
	}
	c = &domain.Counter{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, domain.WrapOp(op, err)
	}

	m.mu.Lock()
	m.counters[id] = c
	m.mu.Unlock()
	return c, nil
}

func (m *CounterManager) persist(ctx context.Context, c *domain.Counter) error {
	data, err := json.Marshal(c)
	if err != nil {
		return domain.WrapOp("Counter.persist", err)
	}
	if err := m.store.Store(ctx, domain.KindCounter, c.ID, data); err != nil {
		return err
	}
	m.mu.Lock()
	m.counters[c.ID] = c
	m.mu.Unlock()
	return nil
}
