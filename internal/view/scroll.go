package view

// NearBottomLines is how far from the end, in lines, still counts as the bottom.
const NearBottomLines = 3

// ScrollTracker decides whether a new snapshot should scroll the message list
// to the bottom. The first snapshot always does; later ones only when the
// user was near the bottom.
type ScrollTracker struct {
	threshold  int
	primed     bool
	nearBottom bool
}

// NewScrollTracker returns a tracker using NearBottomLines.
func NewScrollTracker() *ScrollTracker {
	return &ScrollTracker{threshold: NearBottomLines, nearBottom: true}
}

// Observe records the viewport position: the first visible line offset,
// the viewport height, and the total content height.
func (s *ScrollTracker) Observe(offset, height, content int) {
	s.nearBottom = content-(offset+height) <= s.threshold
}

// NearBottom reports the last observed position.
func (s *ScrollTracker) NearBottom() bool {
	return s.nearBottom
}

// OnSnapshot is called once per delivered snapshot and reports whether to
// scroll to the bottom.
func (s *ScrollTracker) OnSnapshot() bool {
	if !s.primed {
		s.primed = true
		return true
	}
	return s.nearBottom
}

// Reset forgets the position, so the next snapshot scrolls again.
func (s *ScrollTracker) Reset() {
	s.primed = false
	s.nearBottom = true
}
