package ports

// PageView is what the block detector gets to look at after a step: the
// landed location plus the result payload the step produced. It is a value
// snapshot, not a live handle.
type PageView struct {
	URL    string
	Title  string
	Result map[string]any
}

// BlockDetector decides whether a step outcome indicates a condition that
// needs a human (CAPTCHA markers, interstitial heuristics). Detection is
// best-effort and approximate; an explicit pause_for_user step is always
// authoritative and never consults the detector.
type BlockDetector interface {
	// Detect returns an operator-facing reason and true when the view
	// looks blocked.
	Detect(view PageView) (string, bool)
}

// BlockDetectorFunc adapts a plain predicate to the BlockDetector interface.
type BlockDetectorFunc func(view PageView) (string, bool)

// Detect implements BlockDetector.
func (f BlockDetectorFunc) Detect(view PageView) (string, bool) {
	return f(view)
}
