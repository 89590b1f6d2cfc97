// Package engine contains the run orchestration core: the orchestrator
// sequencing steps through a session, the step executor applying the closed
// vocabulary, and the manual-assist block detection.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/humanbrowse/pkg/config"
	"github.com/aretw0/humanbrowse/internal/logging"
	"github.com/aretw0/humanbrowse/internal/policy"
	"github.com/aretw0/humanbrowse/internal/session"
	"github.com/aretw0/humanbrowse/pkg/domain"
	"github.com/aretw0/humanbrowse/pkg/ports"
)

// RunRequest aliases the domain request type so callers inside the engine
// keep a short name.
type RunRequest = domain.RunRequest

// RunResult aliases the domain result type.
type RunResult = domain.RunResult

// Orchestrator sequences runs: it validates the step list, drives the
// session state machine, delegates each step to the executor and persists
// every outcome through the artifact store.
type Orchestrator struct {
	sessions *session.Manager
	store    ports.ArtifactStore
	settings config.Settings
	policy   *policy.DomainPolicy
	exec     *executor
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithBlockDetector replaces the default interstitial heuristic.
func WithBlockDetector(detector ports.BlockDetector) Option {
	return func(o *Orchestrator) {
		o.exec.detector = detector
	}
}

// WithMetrics wires prometheus counters.
func WithMetrics(metrics *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// NewOrchestrator builds the run orchestrator.
func NewOrchestrator(sessions *session.Manager, store ports.ArtifactStore, settings config.Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		store:    store,
		settings: settings,
		policy:   policy.New(settings.Policy.Mode, settings.Policy.Domains),
		exec: &executor{
			settings: settings,
			detector: DefaultBlockDetector(),
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunSteps executes a step sequence. Validation failures and session
// conflicts are rejected before any record is written; everything after
// that is durably logged, one record per attempted step.
func (o *Orchestrator) RunSteps(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := domain.ValidateSteps(req.Steps); err != nil {
		return RunResult{}, err
	}

	sess, err := o.sessions.Open(ctx, req.SessionID, req.NewSession)
	if err != nil {
		return RunResult{}, err
	}

	// A paused session answers with its stored evidence until resumed.
	if assist, paused := sess.Paused(); paused {
		result := RunResult{
			Status:    domain.RunNeedsManualAssist,
			SessionID: sess.ID(),
			RunID:     sess.LastRun(),
			Message:   "Session paused. Resume required.",
		}
		if assist != nil {
			if assist.Message != "" {
				result.Message = assist.Message
			}
			result.Screenshot = assist.Screenshot
			if assist.RunID != "" {
				result.RunID = assist.RunID
			}
		}
		return result, nil
	}

	if o.settings.MaxStepsPerRun > 0 && len(req.Steps) > o.settings.MaxStepsPerRun {
		return o.rejectByPolicy(ctx, sess, "max_steps_per_run", "Maximum steps per run exceeded")
	}

	art, err := o.store.InitRun(sess.ID())
	if err != nil {
		return RunResult{}, err
	}
	sess.SetLastRun(art.RunID())
	o.sessions.Snapshot(ctx, sess)
	o.logger.Info("run started", "run_id", art.RunID(), "session_id", sess.ID(), "steps", len(req.Steps))

	var deadline time.Time
	if o.settings.MaxTotalRuntimeS > 0 {
		deadline = time.Now().Add(time.Duration(o.settings.MaxTotalRuntimeS) * time.Second)
	}

	for index, step := range req.Steps {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return o.violation(ctx, sess, art, domain.PolicyViolation{
				Kind:      "max_total_runtime_s",
				Message:   "Maximum total runtime exceeded",
				StepIndex: &index,
			}, "Runtime limit exceeded")
		}

		if step.Type == domain.StepGoto && !o.policy.IsAllowed(step.URL) {
			stepCopy := step
			return o.violation(ctx, sess, art, domain.PolicyViolation{
				Kind:      "domain_blocked",
				Message:   "Domain blocked by policy: " + step.URL,
				StepIndex: &index,
				Step:      &stepCopy,
			}, "Domain blocked by policy")
		}

		page, err := sess.AcquireForStep()
		if err != nil {
			// Lost the session mid-run (concurrent close or a racing
			// request): the run fails, the log keeps what happened.
			o.finalize(ctx, art, sess, domain.RunFailed)
			return RunResult{
				Status:    domain.RunFailed,
				RunID:     art.RunID(),
				SessionID: sess.ID(),
				Message:   err.Error(),
			}, err
		}

		started := time.Now()
		out := o.exec.execute(ctx, page, index, step, art)
		o.metrics.StepExecuted(step.Type, out.status, time.Since(started))

		if err := art.AppendStep(domain.StepRecord{
			Index:     index,
			Timestamp: time.Now().UTC(),
			Step:      step,
			Status:    out.status,
			Result:    out.result,
		}); err != nil {
			sess.Release(domain.SessionReady)
			o.finalize(ctx, art, sess, domain.RunFailed)
			return RunResult{}, err
		}

		switch out.status {
		case domain.StepBlocked:
			sess.Pause(out.assist)
			o.sessions.Snapshot(ctx, sess)
			o.finalize(ctx, art, sess, domain.RunNeedsManualAssist)
			result := RunResult{
				Status:    domain.RunNeedsManualAssist,
				RunID:     art.RunID(),
				SessionID: sess.ID(),
			}
			if out.assist != nil {
				result.Message = out.assist.Message
				result.Screenshot = out.assist.Screenshot
			}
			return result, nil

		case domain.StepErrored:
			if connectionLost(out.err) {
				sess.Fail()
				o.sessions.Snapshot(ctx, sess)
				o.finalize(ctx, art, sess, domain.RunFailed)
				return RunResult{
					Status:    domain.RunFailed,
					RunID:     art.RunID(),
					SessionID: sess.ID(),
					Message:   out.err.Error(),
				}, out.err
			}
			sess.Release(domain.SessionReady)
			if step.BestEffort {
				o.logger.Warn("best-effort step failed", "run_id", art.RunID(), "index", index, "error", out.err)
				break
			}
			o.finalize(ctx, art, sess, domain.RunFailed)
			return RunResult{
				Status:    domain.RunFailed,
				RunID:     art.RunID(),
				SessionID: sess.ID(),
				Message:   out.err.Error(),
			}, nil

		default:
			sess.Release(domain.SessionReady)
		}

		// Re-check the landed URL: a redirect can leave policy territory.
		if url := stringField(out.result, "url"); url != "" && !o.policy.IsAllowed(url) {
			stepCopy := step
			return o.violation(ctx, sess, art, domain.PolicyViolation{
				Kind:      "domain_blocked",
				Message:   "Domain blocked by policy: " + url,
				StepIndex: &index,
				Step:      &stepCopy,
			}, "Domain blocked by policy")
		}

		if delay := o.settings.MinDelayMSBetweenActions; delay > 0 && index < len(req.Steps)-1 {
			select {
			case <-time.After(time.Duration(delay) * time.Millisecond):
			case <-ctx.Done():
				o.finalize(ctx, art, sess, domain.RunFailed)
				return RunResult{}, ctx.Err()
			}
		}
	}

	o.finalize(ctx, art, sess, domain.RunCompleted)
	return RunResult{
		Status:    domain.RunCompleted,
		RunID:     art.RunID(),
		SessionID: sess.ID(),
	}, nil
}

// Resume clears a manual-assist pause and moves the paused run back to
// running. It never replays steps; the caller issues a fresh run_steps to
// continue.
func (o *Orchestrator) Resume(ctx context.Context, sessionID string) error {
	sess, err := o.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if err := o.sessions.Resume(ctx, sessionID); err != nil {
		return err
	}
	if runID := sess.LastRun(); runID != "" {
		detail, err := o.store.LoadRun(runID)
		if err == nil && detail.Metadata.Status == domain.RunNeedsManualAssist {
			meta := detail.Metadata
			meta.Status = domain.RunRunning
			meta.FinishedAt = nil
			if err := o.store.WriteMetadata(meta); err != nil {
				o.logger.Warn("failed to reopen run metadata", "run_id", runID, "error", err)
			}
		}
	}
	return nil
}

// CloseSession tears down the session. Run history stays on disk.
func (o *Orchestrator) CloseSession(ctx context.Context, sessionID string) error {
	return o.sessions.Close(ctx, sessionID)
}

// SessionStatus returns the observable session snapshot.
func (o *Orchestrator) SessionStatus(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	return o.sessions.Status(ctx, sessionID)
}

// ListRuns returns run metadata, newest first.
func (o *Orchestrator) ListRuns() ([]domain.Run, error) {
	return o.store.ListRuns()
}

// GetRun returns the full decoded view of one run.
func (o *Orchestrator) GetRun(runID string) (*domain.RunDetail, error) {
	return o.store.LoadRun(runID)
}

// rejectByPolicy records an oversized step list without executing anything.
func (o *Orchestrator) rejectByPolicy(ctx context.Context, sess *session.Session, kind, message string) (RunResult, error) {
	art, err := o.store.InitRun(sess.ID())
	if err != nil {
		return RunResult{}, err
	}
	sess.SetLastRun(art.RunID())
	return o.violation(ctx, sess, art, domain.PolicyViolation{Kind: kind, Message: message}, message)
}

func (o *Orchestrator) violation(ctx context.Context, sess *session.Session, art ports.RunArtifacts, v domain.PolicyViolation, message string) (RunResult, error) {
	v.Timestamp = time.Now().UTC()
	if err := art.AppendViolation(v); err != nil {
		o.logger.Warn("failed to append policy violation", "run_id", art.RunID(), "error", err)
	}
	o.finalize(ctx, art, sess, domain.RunPolicyViolation)
	return RunResult{
		Status:    domain.RunPolicyViolation,
		RunID:     art.RunID(),
		SessionID: sess.ID(),
		Message:   message,
	}, nil
}

// finalize snapshots terminal run metadata. Metadata writes are idempotent,
// safe to repeat.
func (o *Orchestrator) finalize(ctx context.Context, art ports.RunArtifacts, sess *session.Session, status domain.RunStatus) {
	detail, err := o.store.LoadRun(art.RunID())
	started := time.Now().UTC()
	if err == nil {
		started = detail.Metadata.StartedAt
	}
	now := time.Now().UTC()
	meta := domain.Run{
		RunID:      art.RunID(),
		SessionID:  sess.ID(),
		Status:     status,
		StartedAt:  started,
		FinishedAt: &now,
	}
	if status == domain.RunRunning {
		meta.FinishedAt = nil
	}
	if err := art.WriteMetadata(meta); err != nil {
		o.logger.Error("failed to finalize run metadata", "run_id", art.RunID(), "error", err)
	}
	o.metrics.RunFinished(status)
	o.sessions.Snapshot(ctx, sess)
	o.logger.Info("run finished", "run_id", art.RunID(), "status", string(status))
}

func connectionLost(err error) bool {
	if errors.Is(err, domain.ErrConnectionLost) {
		return true
	}
	var stepErr *domain.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind == domain.KindConnectionLost
	}
	return false
}
