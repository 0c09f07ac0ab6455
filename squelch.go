package main

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SquelchState is the gate state machine from spec.md §4.4 step 8 / §8:
// open immediately if scaled ≥ 18; open after 3 consecutive frames with
// scaled ≥ 5; close after 10 consecutive frames with scaled < 2.
// Counters reset on state change.
type SquelchState struct {
	Open          bool
	openStreak    int
	closedStreak  int
}

const (
	squelchOpenImmediate = 18.0
	squelchOpenThreshold = 5.0
	squelchOpenStreak    = 3
	squelchCloseThreshold = 2.0
	squelchCloseStreak    = 10
)

// squelchScore computes rv = var(p)/mean(p)^2 and scaled = (rv-1)*sqrt(N) over
// the power spectrum p (one value per bin in the pre-IFFT slice).
func squelchScore(p []float64) float64 {
	n := len(p)
	if n == 0 {
		return 0
	}
	mean, variance := stat.MeanVariance(p, nil)
	if mean == 0 {
		return 0
	}
	rv := variance / (mean * mean)
	return (rv - 1) * math.Sqrt(float64(n))
}

// Update advances the squelch state machine by one audio frame given the
// frame's scaled score, per the fixed transition rules in spec.md §8.
func (s *SquelchState) Update(scaled float64) {
	if scaled >= squelchOpenImmediate {
		if !s.Open {
			s.Open = true
		}
		s.openStreak = 0
		s.closedStreak = 0
		return
	}

	if scaled >= squelchOpenThreshold {
		s.openStreak++
		s.closedStreak = 0
		if !s.Open && s.openStreak >= squelchOpenStreak {
			s.Open = true
			s.openStreak = 0
		}
		return
	}

	s.openStreak = 0
	if scaled < squelchCloseThreshold {
		s.closedStreak++
		if s.Open && s.closedStreak >= squelchCloseStreak {
			s.Open = false
			s.closedStreak = 0
		}
	} else {
		s.closedStreak = 0
	}
}
