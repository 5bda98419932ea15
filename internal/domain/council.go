package domain

import "time"

// CouncilStage is the lifecycle stage of a council session.
type CouncilStage string

// Council session stages. Transitions move forward along
// initializing < deliberating <= synthesizing_round/synthesizing_final < completed,
// except that a late deliberation may move a synthesizing stage back to
// deliberating. failed is terminal and reachable only through Fail.
const (
	StageInitializing      CouncilStage = "initializing"
	StageDeliberating      CouncilStage = "deliberating"
	StageSynthesizingRound CouncilStage = "synthesizing_round"
	StageSynthesizingFinal CouncilStage = "synthesizing_final"
	StageCompleted         CouncilStage = "completed"
	StageFailed            CouncilStage = "failed"
)

// Deliberation is one participant contribution within a numbered round.
type Deliberation struct {
	Round     int       `json:"round"`
	AgentID   string    `json:"agent_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CouncilSession is the full snapshot of a deliberation actor. It is owned
// exclusively by the manager instance holding its identity and persisted as
// a whole after every mutating operation.
type CouncilSession struct {
	Version           int            `json:"version"`
	ID                string         `json:"id"`
	Question          string         `json:"question"`
	Stage             CouncilStage   `json:"stage"`
	MaxRounds         int            `json:"max_rounds"`
	CurrentRound      int            `json:"current_round"`
	CreatedBy         string         `json:"created_by"`
	AgentIDs          []string       `json:"agent_ids"`
	Decision          string         `json:"decision,omitempty"`
	ConsensusScore    float64        `json:"consensus_score,omitempty"`
	ConfidenceLevel   float64        `json:"confidence_level,omitempty"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	AttachedFiles     []string       `json:"attached_files,omitempty"`
	AttachedArtifacts []string       `json:"attached_artifacts,omitempty"`
	Deliberations     []Deliberation `json:"deliberations"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate the actor's held state.
func (s *CouncilSession) Clone() *CouncilSession {
	cp := *s
	cp.AgentIDs = append([]string(nil), s.AgentIDs...)
	cp.AttachedFiles = append([]string(nil), s.AttachedFiles...)
	cp.AttachedArtifacts = append([]string(nil), s.AttachedArtifacts...)
	cp.Deliberations = append([]Deliberation(nil), s.Deliberations...)
	return &cp
}
