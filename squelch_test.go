package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSquelchOpensImmediatelyAboveThreshold(t *testing.T) {
	var s SquelchState
	s.Update(20)
	assert.True(t, s.Open)
}

func TestSquelchOpensAfterThreeConsecutiveFrames(t *testing.T) {
	var s SquelchState
	s.Update(6)
	assert.False(t, s.Open)
	s.Update(6)
	assert.False(t, s.Open)
	s.Update(6)
	assert.True(t, s.Open)
}

func TestSquelchOpenStreakResetsOnDip(t *testing.T) {
	var s SquelchState
	s.Update(6)
	s.Update(6)
	s.Update(1) // drops below the open-streak threshold, resets the streak
	s.Update(6)
	s.Update(6)
	assert.False(t, s.Open, "streak must restart, not resume, after a dip")
}

func TestSquelchClosesAfterTenConsecutiveLowFrames(t *testing.T) {
	var s SquelchState
	s.Update(20)
	require := assert.New(t)
	require.True(s.Open)
	for i := 0; i < 9; i++ {
		s.Update(1)
		require.True(s.Open, "must stay open before the 10th low frame")
	}
	s.Update(1)
	require.False(s.Open)
}

func TestSquelchStaysOpenOnMidRangeScore(t *testing.T) {
	var s SquelchState
	s.Update(20)
	// Scores in [2, 5) neither count toward closing nor reset the closed
	// streak accumulation incorrectly.
	s.Update(3)
	assert.True(t, s.Open)
}

func TestSquelchScoreZeroForEmptyInput(t *testing.T) {
	assert.Zero(t, squelchScore(nil))
}

func TestSquelchScoreFlatSpectrumIsMinusSqrtN(t *testing.T) {
	// A flat spectrum has zero variance, so rv=0 and scaled=(0-1)*sqrt(16).
	flat := make([]float64, 16)
	for i := range flat {
		flat[i] = 5.0
	}
	assert.InDelta(t, -4, squelchScore(flat), 1e-9)
}
