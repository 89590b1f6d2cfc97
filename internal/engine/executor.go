package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/humanbrowse/pkg/config"
	"github.com/aretw0/humanbrowse/internal/extract"
	"github.com/aretw0/humanbrowse/pkg/domain"
	"github.com/aretw0/humanbrowse/pkg/ports"
)

// assistLabel names the screenshot captured as manual-assist evidence.
const assistLabel = "manual_assist"

// outcome is the normalized result of one step attempt.
type outcome struct {
	status domain.StepStatus
	result map[string]any
	err    error                      // set when status == error
	assist *domain.ManualAssistRecord // set when status == blocked
}

// executor maps one step descriptor to exactly one browser operation and
// normalizes the result. It never retries; resubmission is the caller's
// decision.
type executor struct {
	settings config.Settings
	detector ports.BlockDetector
}

// execute runs one step under the per-step timeout. Extraction steps also
// append their note records to the run log; everything else only returns
// the structured result for the step record.
func (e *executor) execute(ctx context.Context, page ports.Page, index int, step domain.Step, art ports.RunArtifacts) outcome {
	if e.settings.StepTimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.settings.StepTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	// Explicit pause requests are authoritative: no detection, no browser
	// action beyond the evidence capture.
	if step.Type == domain.StepPauseForUser {
		return e.pause(ctx, page, index, step.Reason, art)
	}

	result, err := e.perform(ctx, page, index, step, art)
	if err != nil {
		return outcome{
			status: domain.StepErrored,
			result: errorResult(ctx, page, err),
			err:    classify(err, index),
		}
	}

	// Extraction results carry no location fields, so ask the page
	// directly; detection covers every step, not just navigation.
	url := stringField(result, "url")
	title := stringField(result, "title")
	if url == "" {
		url, _ = page.URL(ctx)
	}
	if title == "" {
		title, _ = page.Title(ctx)
	}
	if reason, blocked := e.detector.Detect(ports.PageView{
		URL:    url,
		Title:  title,
		Result: result,
	}); blocked {
		return e.pause(ctx, page, index, reason, art)
	}

	return outcome{status: domain.StepOK, result: result}
}

// perform dispatches on the step type. Every branch returns the result
// payload recorded in the run log.
func (e *executor) perform(ctx context.Context, page ports.Page, index int, step domain.Step, art ports.RunArtifacts) (map[string]any, error) {
	switch step.Type {
	case domain.StepGoto:
		if err := page.Navigate(ctx, step.URL, step.WaitUntil); err != nil {
			return nil, err
		}
		return e.location(ctx, page)

	case domain.StepClick:
		target := ports.ClickTarget{Selector: step.Selector, Text: step.Text, Role: step.Role}
		if err := page.Click(ctx, target); err != nil {
			return nil, err
		}
		return e.location(ctx, page)

	case domain.StepTypeText:
		if err := page.Fill(ctx, step.Selector, step.Text); err != nil {
			return nil, err
		}
		return e.location(ctx, page)

	case domain.StepPress:
		if err := page.Press(ctx, step.Key); err != nil {
			return nil, err
		}
		return e.location(ctx, page)

	case domain.StepWaitFor:
		target := ports.WaitTarget{Selector: step.Selector, Text: step.Text, LoadState: step.LoadState}
		if err := page.WaitFor(ctx, target); err != nil {
			return nil, err
		}
		return e.location(ctx, page)

	case domain.StepScroll:
		pixels := 0
		if step.Pixels != nil {
			pixels = *step.Pixels
		}
		if err := page.Scroll(ctx, pixels, step.ToSelector); err != nil {
			return nil, err
		}
		return e.location(ctx, page)

	case domain.StepScreenshot:
		data, err := page.Screenshot(ctx)
		if err != nil {
			return nil, &domain.StepError{Kind: domain.KindCaptureFailed, Message: "screenshot capture failed", Err: err}
		}
		ref, err := art.SaveScreenshot(step.Label, index, data)
		if err != nil {
			return nil, &domain.StepError{Kind: domain.KindCaptureFailed, Message: "screenshot write failed", Err: err}
		}
		result, err := e.location(ctx, page)
		if err != nil {
			return nil, err
		}
		result["screenshot"] = ref
		return result, nil

	case domain.StepExtract:
		return e.extractStep(ctx, page, index, step, art)

	case domain.StepExtractReadable:
		return e.extractReadableStep(ctx, page, index, art)

	case domain.StepLinks:
		return e.linksStep(ctx, page, index, step, art)

	case domain.StepQuote:
		return e.quoteStep(ctx, page, index, step, art)
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedStep, step.Type)
}

func (e *executor) extractStep(ctx context.Context, page ports.Page, index int, step domain.Step, art ports.RunArtifacts) (map[string]any, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	capture, err := extract.Selector(html, step.Selector, e.settings.MaxExtractChars)
	if err != nil {
		return nil, &domain.StepError{Kind: domain.KindExtractionFailed, Message: "extraction failed", Err: err}
	}
	evidence := e.htmlEvidence(index, "extract", html, art)
	if err := e.note(ctx, page, "extract", capture.Map(), evidence, art); err != nil {
		return nil, err
	}
	return map[string]any{"chars": capture.Chars, "truncated": capture.Truncated}, nil
}

func (e *executor) extractReadableStep(ctx context.Context, page ports.Page, index int, art ports.RunArtifacts) (map[string]any, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	capture, err := extract.Readable(html, e.settings.MaxExtractChars)
	if err != nil {
		return nil, &domain.StepError{Kind: domain.KindExtractionFailed, Message: "readable extraction failed", Err: err}
	}
	evidence := e.htmlEvidence(index, "readable", html, art)
	if err := e.note(ctx, page, "readable_extract", capture.Map(), evidence, art); err != nil {
		return nil, err
	}
	return map[string]any{"chars": capture.Chars, "truncated": capture.Truncated}, nil
}

func (e *executor) linksStep(ctx context.Context, page ports.Page, index int, step domain.Step, art ports.RunArtifacts) (map[string]any, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	links, err := extract.EnumerateLinks(html, step.LinkScope())
	if err != nil {
		return nil, &domain.StepError{Kind: domain.KindExtractionFailed, Message: "link enumeration failed", Err: err}
	}
	evidence := e.htmlEvidence(index, "links", html, art)
	if err := e.note(ctx, page, "links", links.Map(), evidence, art); err != nil {
		return nil, err
	}
	return map[string]any{"count": links.Count, "scope": links.Scope}, nil
}

func (e *executor) quoteStep(ctx context.Context, page ports.Page, index int, step domain.Step, art ports.RunArtifacts) (map[string]any, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	contextChars := step.ContextWindow()
	if e.settings.MaxExtractChars > 0 && contextChars > e.settings.MaxExtractChars {
		contextChars = e.settings.MaxExtractChars
	}
	quote, err := extract.FindQuote(html, step.Query, contextChars, e.settings.MaxExtractChars)
	if err != nil {
		return nil, &domain.StepError{Kind: domain.KindExtractionFailed, Message: "quote search failed", Err: err}
	}
	evidence := e.htmlEvidence(index, "quote", html, art)
	if err := e.note(ctx, page, "quote", quote.Map(), evidence, art); err != nil {
		return nil, err
	}
	return map[string]any{"found": quote.Found, "query": step.Query}, nil
}

// pause captures the evidence screenshot synchronously so the operator
// always has something to look at, then reports the blocked outcome.
func (e *executor) pause(ctx context.Context, page ports.Page, index int, reason string, art ports.RunArtifacts) outcome {
	result := map[string]any{"reason": reason}
	assist := &domain.ManualAssistRecord{
		Message:          reason,
		BlockedStepIndex: index,
		RunID:            art.RunID(),
	}
	if data, err := page.Screenshot(ctx); err == nil {
		if ref, err := art.SaveScreenshot(assistLabel, index, data); err == nil {
			result["screenshot"] = ref
			assist.Screenshot = ref
		}
	}
	return outcome{status: domain.StepBlocked, result: result, assist: assist}
}

// note appends one note record carrying the current location.
func (e *executor) note(ctx context.Context, page ports.Page, kind string, content map[string]any, evidence map[string]string, art ports.RunArtifacts) error {
	url, _ := page.URL(ctx)
	title, _ := page.Title(ctx)
	return art.AppendNote(domain.Note{
		NoteKind:  kind,
		URL:       url,
		Title:     title,
		Timestamp: time.Now().UTC(),
		Content:   content,
		Evidence:  evidence,
	})
}

// htmlEvidence persists the page HTML when snapshots are enabled and
// returns the evidence reference map (or nil).
func (e *executor) htmlEvidence(index int, label, html string, art ports.RunArtifacts) map[string]string {
	if !e.settings.CaptureHTMLSnapshot {
		return nil
	}
	ref, err := art.SaveHTML(label, index, html)
	if err != nil {
		return nil
	}
	return map[string]string{"html": ref}
}

func (e *executor) location(ctx context.Context, page ports.Page) (map[string]any, error) {
	url, err := page.URL(ctx)
	if err != nil {
		return nil, err
	}
	title, err := page.Title(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"url": url, "title": title}, nil
}

// classify wraps err as a StepError with the step index filled in.
func classify(err error, index int) error {
	return &domain.StepError{
		Kind:      domain.KindOf(err),
		StepIndex: index,
		Message:   "step execution failed",
		Err:       err,
	}
}

func errorResult(ctx context.Context, page ports.Page, err error) map[string]any {
	result := map[string]any{"error": err.Error()}
	if url, uerr := page.URL(ctx); uerr == nil && url != "" {
		result["url"] = url
	}
	return result
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
