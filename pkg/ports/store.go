package ports

import (
	"github.com/aretw0/humanbrowse/pkg/domain"
)

// RunArtifacts is the write handle for one run. Records are append-only and
// never rewritten or reordered; the metadata record is the one mutable,
// idempotently-overwritten snapshot.
type RunArtifacts interface {
	// RunID is the identifier allocated at init time.
	RunID() string

	// AppendStep appends one step record to the run log.
	AppendStep(record domain.StepRecord) error

	// AppendNote appends one note record to the run log.
	AppendNote(note domain.Note) error

	// AppendViolation appends one policy-violation record to the run log.
	AppendViolation(v domain.PolicyViolation) error

	// WriteMetadata overwrites the metadata snapshot for the run.
	WriteMetadata(run domain.Run) error

	// SaveScreenshot persists PNG bytes under the run's screenshot
	// directory and returns the run-relative reference path.
	SaveScreenshot(label string, index int, data []byte) (string, error)

	// SaveHTML persists an HTML snapshot and returns the run-relative
	// reference path.
	SaveHTML(label string, index int, html string) (string, error)
}

// ArtifactStore creates per-run write handles and reads back persisted runs.
type ArtifactStore interface {
	// InitRun allocates a run ID, creates the run directory layout and
	// writes the initial metadata snapshot.
	InitRun(sessionID string) (RunArtifacts, error)

	// ListRuns returns the metadata of every persisted run, newest first.
	ListRuns() ([]domain.Run, error)

	// LoadRun returns the full decoded view of one run, or
	// domain.ErrRunNotFound.
	LoadRun(runID string) (*domain.RunDetail, error)

	// WriteMetadata overwrites the metadata snapshot of an existing run
	// (used by resume to move a paused run back to running).
	WriteMetadata(run domain.Run) error
}
