package domain

import "time"

// RunStatus is the lifecycle status of a run. Transitions are monotonic:
// once completed or failed no further steps execute; needs_manual_assist is
// the only non-terminal pause state.
type RunStatus string

const (
	RunRunning           RunStatus = "RUNNING"
	RunCompleted         RunStatus = "COMPLETED"
	RunFailed            RunStatus = "FAILED"
	RunNeedsManualAssist RunStatus = "NEEDS_MANUAL_ASSIST"
	RunPolicyViolation   RunStatus = "POLICY_VIOLATION"
)

// Terminal reports whether no further steps may execute for the run.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunPolicyViolation
}

// Run is the mutable metadata record of one step-sequence invocation. It
// references its session by identifier only: closing a session does not
// delete its runs.
type Run struct {
	RunID      string     `json:"run_id"`
	SessionID  string     `json:"session_id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// RunRequest is one invocation of a step sequence against a session.
type RunRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	NewSession bool   `json:"new_session,omitempty"`
	Steps      []Step `json:"steps"`
}

// RunResult is the summary returned to the caller; the full record lives
// in the artifact store.
type RunResult struct {
	Status     RunStatus `json:"status"`
	RunID      string    `json:"run_id"`
	SessionID  string    `json:"session_id"`
	Message    string    `json:"message,omitempty"`
	Screenshot string    `json:"screenshot,omitempty"`
}

// StepStatus is the outcome of a single executed or attempted step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepErrored StepStatus = "error"
	StepBlocked StepStatus = "blocked"
)

// RecordType discriminates entries in the append-only run log.
type RecordType string

const (
	RecordStep            RecordType = "step"
	RecordNote            RecordType = "note"
	RecordPolicyViolation RecordType = "policy_violation"
)

// StepRecord is one executed or attempted step within a run. Indices are
// contiguous and strictly increasing; a blocked record is always the last
// record of a run until resumed.
type StepRecord struct {
	Type      RecordType     `json:"type"`
	Index     int            `json:"index"`
	Timestamp time.Time      `json:"timestamp"`
	Step      Step           `json:"step"`
	Status    StepStatus     `json:"status"`
	Result    map[string]any `json:"result"`
}

// Note is a free-form observation attached to a run, independent of step
// ordering (extracted text, link lists, quote captures).
type Note struct {
	Type      RecordType        `json:"type"`
	NoteKind  string            `json:"note_kind"`
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	Timestamp time.Time         `json:"timestamp"`
	Content   map[string]any    `json:"content"`
	Evidence  map[string]string `json:"evidence,omitempty"`
}

// PolicyViolation records why a run was stopped by policy.
type PolicyViolation struct {
	Type      RecordType `json:"type"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
	StepIndex *int       `json:"step_index,omitempty"`
	Step      *Step      `json:"step,omitempty"`
}

// ManualAssistRecord captures why a run paused. It is retained in history
// even after a successful resume.
type ManualAssistRecord struct {
	Message          string `json:"message"`
	Screenshot       string `json:"screenshot,omitempty"`
	BlockedStepIndex int    `json:"blocked_step_index"`
	RunID            string `json:"run_id,omitempty"`
}

// RunDetail is the full inspectable view of a run: metadata plus the
// decoded log partitioned by record type.
type RunDetail struct {
	Metadata     Run                 `json:"metadata"`
	Steps        []StepRecord        `json:"steps"`
	Notes        []Note              `json:"notes"`
	Violations   []PolicyViolation   `json:"violations,omitempty"`
	ManualAssist *ManualAssistRecord `json:"manual_assist,omitempty"`
}
