package humanbrowse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/humanbrowse"
	"github.com/aretw0/humanbrowse/internal/testutils"
	"github.com/aretw0/humanbrowse/pkg/config"
	"github.com/aretw0/humanbrowse/pkg/domain"
)

func newService(t *testing.T) (*humanbrowse.Service, *testutils.FakeBrowser) {
	t.Helper()
	settings := config.Default()
	settings.RunsDir = t.TempDir()
	settings.MinDelayMSBetweenActions = 0

	browser := testutils.NewFakeBrowser()
	svc, err := humanbrowse.New(context.Background(), settings,
		humanbrowse.WithBrowser(browser))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc, browser
}

func TestService_RunAndInspect(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	result, err := svc.RunSteps(ctx, domain.RunRequest{
		NewSession: true,
		Steps: []domain.Step{
			{Type: domain.StepGoto, URL: "https://example.com"},
			{Type: domain.StepScreenshot, Label: "home"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, result.Status)

	runs, err := svc.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	detail, err := svc.GetRun(result.RunID)
	require.NoError(t, err)
	assert.Len(t, detail.Steps, 2)

	info, err := svc.SessionStatus(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionReady, info.State)
}

func TestService_PauseResumeClose(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	result, err := svc.RunSteps(ctx, domain.RunRequest{
		NewSession: true,
		Steps:      []domain.Step{{Type: domain.StepPauseForUser, Reason: "solve the captcha"}},
	})
	require.NoError(t, err)
	require.Equal(t, domain.RunNeedsManualAssist, result.Status)
	assert.Equal(t, "solve the captcha", result.Message)

	require.NoError(t, svc.Resume(ctx, result.SessionID))

	info, err := svc.SessionStatus(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionReady, info.State)

	require.NoError(t, svc.CloseSession(ctx, result.SessionID))
}

func TestService_CustomBlockDetector(t *testing.T) {
	settings := config.Default()
	settings.RunsDir = t.TempDir()
	settings.MinDelayMSBetweenActions = 0

	browser := testutils.NewFakeBrowser()
	svc, err := humanbrowse.New(context.Background(), settings,
		humanbrowse.WithBrowser(browser),
		humanbrowse.WithBlockDetector(testutils.AlwaysBlocked("custom wall")))
	require.NoError(t, err)
	defer svc.Close(context.Background())

	result, err := svc.RunSteps(context.Background(), domain.RunRequest{
		NewSession: true,
		Steps:      []domain.Step{{Type: domain.StepGoto, URL: "https://example.com"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunNeedsManualAssist, result.Status)
	assert.Equal(t, "custom wall", result.Message)
}
