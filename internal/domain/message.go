package domain

import "time"

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is sent to a streaming model provider.
type ChatRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// FragmentType classifies a fragment emitted by the agent loop.
type FragmentType string

const (
	// FragmentText is a raw model output delta, forwarded as it streams.
	FragmentText FragmentType = "text"
	// FragmentToolResult carries the output of a successfully executed tool.
	FragmentToolResult FragmentType = "tool_result"
	// FragmentNotice carries visible loop-level notices: unknown tool,
	// parameter validation failures, tool failures, finish reason, and the
	// max-iterations message.
	FragmentNotice FragmentType = "notice"
)

// Fragment is one element of the loop's output stream. A non-nil Err means
// the model capability failed; it is always the final fragment.
type Fragment struct {
	Type FragmentType
	Text string
	Err  error
}
