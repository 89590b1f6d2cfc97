package artifacts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

// ListRuns returns the metadata snapshot of every run, newest first. Runs
// with unreadable metadata are skipped rather than failing the listing.
func (s *Store) ListRuns() ([]domain.Run, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	runs := make([]domain.Run, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		meta, err := s.loadMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// LoadRun returns the full decoded view of one run.
func (s *Store) LoadRun(runID string) (*domain.RunDetail, error) {
	meta, err := s.loadMetadata(runID)
	if err != nil {
		return nil, err
	}

	detail := &domain.RunDetail{Metadata: meta}
	if err := s.readRecords(runID, detail); err != nil {
		return nil, err
	}

	// The blocked record, when present, is the last record of the run; it
	// carries the operator-facing evidence.
	for _, step := range detail.Steps {
		if step.Status != domain.StepBlocked {
			continue
		}
		assist := &domain.ManualAssistRecord{
			BlockedStepIndex: step.Index,
			RunID:            runID,
		}
		if reason, ok := step.Result["reason"].(string); ok {
			assist.Message = reason
		}
		if shot, ok := step.Result["screenshot"].(string); ok {
			assist.Screenshot = shot
		}
		detail.ManualAssist = assist
	}
	return detail, nil
}

// WriteMetadata overwrites the metadata snapshot of an existing run.
func (s *Store) WriteMetadata(run domain.Run) error {
	if _, err := s.loadMetadata(run.RunID); err != nil {
		return err
	}
	handle := &runArtifacts{runID: run.RunID, runDir: s.RunDir(run.RunID)}
	return handle.WriteMetadata(run)
}

func (s *Store) loadMetadata(runID string) (domain.Run, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), metadataName))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Run{}, domain.ErrRunNotFound
		}
		return domain.Run{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return domain.Run{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return run, nil
}

// readRecords decodes the heterogeneous JSONL log into the detail view.
// Malformed lines are skipped; the log is evidence, not a strict format.
func (s *Store) readRecords(runID string, detail *domain.RunDetail) error {
	f, err := os.Open(filepath.Join(s.RunDir(runID), runLogName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var header struct {
			Type domain.RecordType `json:"type"`
		}
		if err := json.Unmarshal([]byte(line), &header); err != nil {
			continue
		}
		switch header.Type {
		case domain.RecordStep:
			var rec domain.StepRecord
			if json.Unmarshal([]byte(line), &rec) == nil {
				detail.Steps = append(detail.Steps, rec)
			}
		case domain.RecordNote:
			var note domain.Note
			if json.Unmarshal([]byte(line), &note) == nil {
				detail.Notes = append(detail.Notes, note)
			}
		case domain.RecordPolicyViolation:
			var v domain.PolicyViolation
			if json.Unmarshal([]byte(line), &v) == nil {
				detail.Violations = append(detail.Violations, v)
			}
		}
	}
	return scanner.Err()
}
