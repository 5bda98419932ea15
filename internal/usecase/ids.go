package usecase

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// generateULID returns a lexicographically sortable unique identity for
// actors created without a caller-supplied id.
func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
