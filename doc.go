/*
Package humanbrowse drives a single, visible, human-profile browser through a closed vocabulary of steps, recording everything it does as durable run artifacts.

It attaches to an already-running Chromium over the DevTools protocol. Nothing is launched headless: the point is that the human can watch the session, and take over when a site demands proof of humanity.

# Concept

An agent submits a flat list of steps (goto, click, type, press, wait_for, scroll, extract, extract_readable, links, quote, screenshot, pause_for_user). The orchestrator executes them one at a time against the active session, appending one record per attempted step to an append-only run log. When an interstitial blocks progress, or a step asks for it explicitly, the run pauses with evidence and waits for a human to finish the challenge in the visible browser; resume hands control back without replaying anything.

# Key Features

  - Closed step vocabulary: every action is one of twelve declarative step types, validated before anything runs.
  - Durable run records: JSONL step log, metadata snapshot, screenshots and optional HTML evidence per run.
  - Manual-assist protocol: explicit pause_for_user steps and heuristic block detection both converge on the same pause/resume flow.
  - Domain policy and run limits: allowlist/denylist by registrable domain, step count and total runtime caps, inter-step pacing.
  - Hexagonal layout: the engine is decoupled from its adapters (HTTP API, MCP server, CDP browser, session-status stores).

# Usage

Assemble the service from settings and run steps against a fresh session:

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/humanbrowse"
		"github.com/aretw0/humanbrowse/pkg/config"
		"github.com/aretw0/humanbrowse/pkg/domain"
	)

	func main() {
		ctx := context.Background()
		svc, err := humanbrowse.New(ctx, config.Default())
		if err != nil {
			log.Fatal(err)
		}
		defer svc.Close(ctx)

		result, err := svc.RunSteps(ctx, domain.RunRequest{
			NewSession: true,
			Steps: []domain.Step{
				{Type: domain.StepGoto, URL: "https://example.com"},
				{Type: domain.StepExtractReadable},
			},
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("run %s finished: %s", result.RunID, result.Status)
	}

When the result status is NEEDS_MANUAL_ASSIST, show the human the recorded screenshot, let them act in the visible browser, then call Resume and submit the remaining steps as a new run.
*/
package humanbrowse
