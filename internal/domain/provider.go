package domain

import "context"

// StreamDelta is a single incremental chunk from a streaming model response.
// A non-nil Err means the stream failed mid-flight; it is the final delta.
type StreamDelta struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Err     error  `json:"-"`
}

// StreamProvider is the model-text-streaming capability consumed by the
// agent loop. Given a message history it produces an ordered sequence of
// text deltas; failures are raised either as the returned error (stream
// never started) or as a final delta with Err set.
type StreamProvider interface {
	// Name returns the provider's identifier (e.g., "openai").
	Name() string
	// ChatStream sends a request and returns a channel of incremental deltas.
	// The channel is closed when the stream ends or ctx is cancelled.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamDelta, error)
}
