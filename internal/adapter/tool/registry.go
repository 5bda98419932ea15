package tool

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"quorum/internal/domain"
)

type entry struct {
	tool     domain.Tool
	compiled *jsonschema.Schema // nil = no validation
}

// Registry holds tools keyed by id. Registration overwrites silently: the
// last writer for a given id wins. Callers that need collision detection
// must check Get before Register.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]entry
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]entry),
		logger: logger,
	}
}

// Register adds a tool, replacing any previous tool with the same id.
// The tool's parameter schema is compiled once here; if compilation fails
// the tool is registered without validation and a warning is logged.
func (r *Registry) Register(t domain.Tool) {
	compiled, err := compileSchema(t.ID(), t.Parameters())
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("schema validation disabled for tool", "tool", t.ID(), "error", err)
		}
		compiled = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.ID()]; exists && r.logger != nil {
		r.logger.Debug("tool re-registered", "tool", t.ID())
	}
	r.tools[t.ID()] = entry{tool: t, compiled: compiled}
}

// Get retrieves a tool by id.
func (r *Registry) Get(id string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[id]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, id)
	}
	return e.tool, nil
}

// Validate checks raw parameters against the registered tool's schema.
// A nil return means the parameters are structurally valid; otherwise the
// returned *ValidationError lists every failed field.
func (r *Registry) Validate(id string, raw json.RawMessage) error {
	r.mu.RLock()
	e, ok := r.tools[id]
	r.mu.RUnlock()

	if !ok {
		return domain.NewDomainError("Registry.Validate", domain.ErrToolNotFound, id)
	}
	return validateParams(id, e.compiled, raw)
}

// List returns all registered tools in unspecified order.
func (r *Registry) List() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]domain.Tool, 0, len(r.tools))
	for _, e := range r.tools {
		tools = append(tools, e.tool)
	}
	return tools
}

// IDs returns all registered tool ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Describe renders every tool's name, id, description and parameter synopsis
// for embedding into model instructions. An empty registry yields "".
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.tools) == 0 {
		return ""
	}

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		t := r.tools[id].tool
		fmt.Fprintf(&b, "- %s (id: %s): %s\n", t.Name(), t.ID(), t.Description())
		b.WriteString(t.Parameters().Describe())
	}
	return b.String()
}
