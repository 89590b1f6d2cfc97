package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/humanbrowse/internal/artifacts"
	"github.com/aretw0/humanbrowse/pkg/domain"
)

func TestInitRun_CreatesLayout(t *testing.T) {
	store := artifacts.NewStore(t.TempDir())

	run, err := store.InitRun("sess-1")
	require.NoError(t, err)
	require.NotEmpty(t, run.RunID())

	runDir := store.RunDir(run.RunID())
	assert.DirExists(t, filepath.Join(runDir, "screenshots"))
	assert.DirExists(t, filepath.Join(runDir, "html"))
	assert.FileExists(t, filepath.Join(runDir, "metadata.json"))

	meta, err := store.LoadRun(run.RunID())
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, meta.Metadata.Status)
	assert.Equal(t, "sess-1", meta.Metadata.SessionID)
}

func TestAppendAndLoad_RoundTrip(t *testing.T) {
	store := artifacts.NewStore(t.TempDir())
	run, err := store.InitRun("sess-1")
	require.NoError(t, err)

	require.NoError(t, run.AppendStep(domain.StepRecord{
		Index:     0,
		Timestamp: time.Now().UTC(),
		Step:      domain.Step{Type: domain.StepGoto, URL: "https://example.com"},
		Status:    domain.StepOK,
		Result:    map[string]any{"url": "https://example.com", "title": "Example"},
	}))
	require.NoError(t, run.AppendNote(domain.Note{
		NoteKind: "extract",
		URL:      "https://example.com",
		Title:    "Example",
		Content:  map[string]any{"text": "hello", "chars": 5},
	}))
	require.NoError(t, run.AppendStep(domain.StepRecord{
		Index:  1,
		Step:   domain.Step{Type: domain.StepPauseForUser, Reason: "login required"},
		Status: domain.StepBlocked,
		Result: map[string]any{"reason": "login required", "screenshot": "screenshots/manual_assist.png"},
	}))

	detail, err := store.LoadRun(run.RunID())
	require.NoError(t, err)
	require.Len(t, detail.Steps, 2)
	require.Len(t, detail.Notes, 1)
	assert.Equal(t, 0, detail.Steps[0].Index)
	assert.Equal(t, domain.StepOK, detail.Steps[0].Status)
	assert.Equal(t, "extract", detail.Notes[0].NoteKind)

	require.NotNil(t, detail.ManualAssist)
	assert.Equal(t, "login required", detail.ManualAssist.Message)
	assert.Equal(t, "screenshots/manual_assist.png", detail.ManualAssist.Screenshot)
	assert.Equal(t, 1, detail.ManualAssist.BlockedStepIndex)
}

func TestWriteMetadata_IsIdempotentSnapshot(t *testing.T) {
	store := artifacts.NewStore(t.TempDir())
	run, err := store.InitRun("sess-1")
	require.NoError(t, err)

	finished := time.Now().UTC()
	meta := domain.Run{
		RunID:      run.RunID(),
		SessionID:  "sess-1",
		Status:     domain.RunCompleted,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
	}
	require.NoError(t, run.WriteMetadata(meta))
	require.NoError(t, run.WriteMetadata(meta))

	detail, err := store.LoadRun(run.RunID())
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, detail.Metadata.Status)
	require.NotNil(t, detail.Metadata.FinishedAt)
}

func TestSaveScreenshot_SafeLabels(t *testing.T) {
	store := artifacts.NewStore(t.TempDir())
	run, err := store.InitRun("sess-1")
	require.NoError(t, err)

	rel, err := run.SaveScreenshot("home page/../x", 3, []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("screenshots", "home_page____x.png"), rel)
	assert.FileExists(t, filepath.Join(store.RunDir(run.RunID()), rel))

	rel, err = run.SaveScreenshot("", 3, []byte{1})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("screenshots", "step_3.png"), rel)
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := artifacts.NewStore(t.TempDir())

	first, err := store.InitRun("sess-1")
	require.NoError(t, err)
	second, err := store.InitRun("sess-1")
	require.NoError(t, err)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// ULIDs allocated later sort later; listing is newest first.
	assert.Equal(t, second.RunID(), runs[0].RunID)
	assert.Equal(t, first.RunID(), runs[1].RunID)
}

func TestLoadRun_NotFound(t *testing.T) {
	store := artifacts.NewStore(t.TempDir())
	_, err := store.LoadRun("missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestListRuns_SkipsJunk(t *testing.T) {
	dir := t.TempDir()
	store := artifacts.NewStore(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "not-a-run"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644))

	runs, err := store.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)
}
