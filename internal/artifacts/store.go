// Package artifacts implements the on-disk artifact store: one directory
// per run holding an append-only JSONL log, a mutable metadata snapshot and
// the screenshot/HTML files referenced by log records.
package artifacts

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aretw0/humanbrowse/pkg/domain"
	"github.com/aretw0/humanbrowse/pkg/ports"
)

const (
	runLogName      = "run.jsonl"
	metadataName    = "metadata.json"
	screenshotsDir  = "screenshots"
	htmlDir         = "html"
	defaultArtifact = "artifact"
)

// Store implements ports.ArtifactStore on the local filesystem.
type Store struct {
	basePath string
	mu       sync.Mutex // serializes ULID generation for monotonic run IDs
	entropy  *ulid.MonotonicEntropy
}

// NewStore creates a store rooted at basePath. If basePath is empty it
// defaults to "runs".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = "runs"
	}
	return &Store{
		basePath: basePath,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// BasePath returns the runs directory root.
func (s *Store) BasePath() string {
	return s.basePath
}

// RunDir returns the directory of a run without checking existence.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.basePath, runID)
}

// NewRunID allocates a ULID. ULIDs sort lexicographically by creation time,
// so directory listings come back in run order.
func (s *Store) NewRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// InitRun creates the run directory layout and the initial metadata
// snapshot with status RUNNING.
func (s *Store) InitRun(sessionID string) (ports.RunArtifacts, error) {
	runID := s.NewRunID()
	runDir := s.RunDir(runID)

	for _, dir := range []string{runDir, filepath.Join(runDir, screenshotsDir), filepath.Join(runDir, htmlDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}

	run := &runArtifacts{runID: runID, runDir: runDir}
	meta := domain.Run{
		RunID:     runID,
		SessionID: sessionID,
		Status:    domain.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := run.WriteMetadata(meta); err != nil {
		return nil, err
	}
	return run, nil
}

// runArtifacts is the write handle for a single run.
type runArtifacts struct {
	runID  string
	runDir string
	mu     sync.Mutex
}

func (r *runArtifacts) RunID() string {
	return r.runID
}

// appendRecord writes one JSON line to the run log. The file is opened in
// append mode per record so a crash never truncates earlier records.
func (r *runArtifacts) appendRecord(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(r.runDir, runLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// AppendStep appends one step record.
func (r *runArtifacts) AppendStep(record domain.StepRecord) error {
	record.Type = domain.RecordStep
	return r.appendRecord(record)
}

// AppendNote appends one note record.
func (r *runArtifacts) AppendNote(note domain.Note) error {
	note.Type = domain.RecordNote
	return r.appendRecord(note)
}

// AppendViolation appends one policy-violation record.
func (r *runArtifacts) AppendViolation(v domain.PolicyViolation) error {
	v.Type = domain.RecordPolicyViolation
	return r.appendRecord(v)
}

// WriteMetadata overwrites the metadata snapshot. Safe to call repeatedly;
// each call is a full idempotent snapshot of current run state.
func (r *runArtifacts) WriteMetadata(run domain.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.runDir, metadataName), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// SaveScreenshot writes PNG bytes under screenshots/ and returns the
// run-relative path for use as an artifact reference.
func (r *runArtifacts) SaveScreenshot(label string, index int, data []byte) (string, error) {
	name := safeFilename(label, index) + ".png"
	rel := filepath.Join(screenshotsDir, name)
	if err := os.WriteFile(filepath.Join(r.runDir, rel), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return rel, nil
}

// SaveHTML writes an HTML snapshot under html/ and returns the run-relative
// path.
func (r *runArtifacts) SaveHTML(label string, index int, html string) (string, error) {
	name := safeFilename(label, index) + ".html"
	rel := filepath.Join(htmlDir, name)
	if err := os.WriteFile(filepath.Join(r.runDir, rel), []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write html snapshot: %w", err)
	}
	return rel, nil
}

// safeFilename maps a free-form label to a filesystem-safe name, falling
// back to the step index when the label is empty.
func safeFilename(label string, index int) string {
	if label == "" {
		label = fmt.Sprintf("step_%d", index)
	}
	var b strings.Builder
	for _, ch := range label {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
			b.WriteRune(ch)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "_")
	if cleaned == "" {
		return defaultArtifact
	}
	return cleaned
}
