package security

import (
	"sync"
	"time"
)

// RateWindow counts requests per origin over a sliding window. Stale
// timestamps are pruned on observation, so memory stays proportional to the
// live request rate.
type RateWindow struct {
	mu      sync.Mutex
	origins map[string][]time.Time
	window  time.Duration
}

// NewRateWindow creates a tracker with the given window.
func NewRateWindow(window time.Duration) *RateWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &RateWindow{
		origins: make(map[string][]time.Time),
		window:  window,
	}
}

// Observe records one request from origin at ts and returns the number of
// requests from that origin still inside the window, including this one.
func (w *RateWindow) Observe(origin string, ts time.Time) int {
	if origin == "" {
		return 0
	}
	cutoff := ts.Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	stamps := w.origins[origin]
	kept := stamps[:0]
	for _, stamp := range stamps {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	kept = append(kept, ts)
	w.origins[origin] = kept
	return len(kept)
}

// Count returns how many observations for origin remain inside the window
// ending at now.
func (w *RateWindow) Count(origin string, now time.Time) int {
	cutoff := now.Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	count := 0
	for _, stamp := range w.origins[origin] {
		if stamp.After(cutoff) {
			count++
		}
	}
	return count
}

// Sweep drops origins whose entire history fell out of the window. Called
// from the periodic security sweep.
func (w *RateWindow) Sweep(now time.Time) {
	cutoff := now.Add(-w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	for origin, stamps := range w.origins {
		kept := stamps[:0]
		for _, stamp := range stamps {
			if stamp.After(cutoff) {
				kept = append(kept, stamp)
			}
		}
		if len(kept) == 0 {
			delete(w.origins, origin)
			continue
		}
		w.origins[origin] = kept
	}
}
