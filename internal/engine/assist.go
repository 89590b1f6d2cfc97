package engine

import (
	"strings"

	"github.com/aretw0/humanbrowse/pkg/ports"
)

// interstitialMarkers are page titles used by common bot-defense
// interstitials. Matching is best-effort: a miss just means the operator
// uses an explicit pause_for_user step instead.
var interstitialMarkers = []string{
	"just a moment",
	"attention required",
	"verify you are human",
	"are you a robot",
	"access denied",
	"checking your browser",
	"one more step",
}

// DefaultBlockDetector flags pages whose title matches a known interstitial
// marker. It is the pluggable default; deployments can swap in their own
// predicate via the engine options.
func DefaultBlockDetector() ports.BlockDetector {
	return ports.BlockDetectorFunc(func(view ports.PageView) (string, bool) {
		title := strings.ToLower(view.Title)
		for _, marker := range interstitialMarkers {
			if strings.Contains(title, marker) {
				return "Page looks blocked (" + view.Title + "). Human intervention required.", true
			}
		}
		return "", false
	})
}

// NopBlockDetector never detects a block. Explicit pause_for_user steps
// still pause the run; they are authoritative and bypass detection.
func NopBlockDetector() ports.BlockDetector {
	return ports.BlockDetectorFunc(func(ports.PageView) (string, bool) {
		return "", false
	})
}
