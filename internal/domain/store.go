package domain

import (
	"context"
	"encoding/json"
)

// SnapshotKind namespaces snapshot identities by actor type.
type SnapshotKind string

const (
	KindCouncil SnapshotKind = "council"
	KindPack    SnapshotKind = "pack"
	KindCounter SnapshotKind = "counter"
)

// SnapshotStore is the durable key-value store backing actor state. Each
// actor identity maps to exactly one snapshot, written whole. Deleting
// snapshots is an external-store concern, not part of this contract.
type SnapshotStore interface {
	// Load returns the snapshot for (kind, id), with found=false when no
	// snapshot exists.
	Load(ctx context.Context, kind SnapshotKind, id string) (data json.RawMessage, found bool, err error)
	// Store writes the full snapshot for (kind, id), replacing any previous one.
	Store(ctx context.Context, kind SnapshotKind, id string, data json.RawMessage) error
}
