package model

import "time"

// Alert is a single host+resource record above the disk usage threshold.
// One alert drives one diagnosis session; it is immutable once fetched.
type Alert struct {
	Host         string  `json:"host"`
	Mount        string  `json:"mount"`
	UsagePercent float64 `json:"usage_percent"`
	UsedBytes    int64   `json:"used_bytes"`
	TotalBytes   int64   `json:"total_bytes"`
}

// UsedGB returns the used space in gigabytes.
func (a Alert) UsedGB() float64 {
	return float64(a.UsedBytes) / (1 << 30)
}

// TotalGB returns the total capacity in gigabytes.
func (a Alert) TotalGB() float64 {
	return float64(a.TotalBytes) / (1 << 30)
}

// FreeGB returns the free space in gigabytes.
func (a Alert) FreeGB() float64 {
	return a.TotalGB() - a.UsedGB()
}

// Decision is the human verdict on a proposed command.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionSkipped  Decision = "skipped"
)

// ExecutionResult is what the command channel returned for one command.
// Immutable after creation.
type ExecutionResult struct {
	Stdout       string        `json:"stdout"`
	Stderr       string        `json:"stderr"`
	ExitCode     int           `json:"exit_code"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Turn is one proposal/decision/execution exchange within a session.
// History is append-only; a Turn is never mutated after being recorded.
type Turn struct {
	Command     string           `json:"command"`
	TargetHost  string           `json:"target_host"`
	Explanation string           `json:"explanation"`
	Decision    Decision         `json:"decision"`
	Result      *ExecutionResult `json:"result,omitempty"`
}

// Executed reports whether the turn's command actually ran on the target.
func (t Turn) Executed() bool {
	return t.Decision == DecisionApproved && t.Result != nil
}

// Conclusion is the terminal artifact of a session.
type Conclusion struct {
	RootCause          string   `json:"root_cause"`
	LongTermSolution   string   `json:"long_term_solution"`
	ImmediateActions   string   `json:"immediate_actions"`
	PreventiveMeasures string   `json:"preventive_measures"`
	Commands           []string `json:"implementation_commands,omitempty"`
}

// ActionKind tags the decoded shape of an LLM reply.
type ActionKind int

const (
	ActionParseFailure ActionKind = iota
	ActionProposeCommand
	ActionConclude
)

// ParsedAction is the typed result of decoding a free-text LLM reply.
// A malformed reply yields Kind == ActionParseFailure with Reason set;
// decoding never returns an error.
type ParsedAction struct {
	Kind        ActionKind
	TargetHost  string
	Command     string
	Explanation string
	Conclusion  *Conclusion
	Reason      string
}

// SessionStatus is the lifecycle state of a diagnosis session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionConcluded SessionStatus = "concluded"
	SessionAborted   SessionStatus = "aborted"
)

// SessionOutcome summarizes a finished session.
type SessionOutcome struct {
	Status      SessionStatus
	Reason      string
	Conclusion  *Conclusion
	History     []Turn
	Iterations  int
	ExecutedCnt int
}
