package sim

import (
	"github.com/pthm-cable/amoebot/history"
)

// CurrentRound returns the round the live state reflects.
func (s *System) CurrentRound() int { return s.currentRound }

// LatestRound returns the newest recorded round.
func (s *System) LatestRound() int { return s.latestRound }

// EarliestRound returns the oldest recorded round.
func (s *System) EarliestRound() int { return s.earliestRound }

// IsTracking reports whether the marker follows the latest round.
func (s *System) IsTracking() bool { return s.tracking }

// IsFinished reports whether the algorithm had terminated by the
// current round.
func (s *System) IsFinished() bool {
	return s.finishedRound >= 0 && s.currentRound >= s.finishedRound
}

// FinishedRound returns the round the algorithm terminated in, or -1.
func (s *System) FinishedRound() int { return s.finishedRound }

// SetMarkerToRound enters read-only replay at the given round. Every
// history is moved to the round and the live state re-read from it.
func (s *System) SetMarkerToRound(round int) error {
	if round < s.earliestRound || round > s.latestRound {
		return ErrRoundOutOfRange
	}
	s.forEachHistory(func(h history.Rewindable) { h.SetMarker(round) })
	s.currentRound = round
	s.tracking = false
	s.restoreLiveState(round)
	return nil
}

// StepBack moves the marker one round back.
func (s *System) StepBack() error {
	if s.currentRound <= s.earliestRound {
		return ErrAtEarliest
	}
	return s.SetMarkerToRound(s.currentRound - 1)
}

// StepForward moves the marker one round forward.
func (s *System) StepForward() error {
	if s.currentRound >= s.latestRound {
		return ErrAtLatest
	}
	return s.SetMarkerToRound(s.currentRound + 1)
}

// ContinueTracking leaves replay: the marker returns to the latest
// round and simulation may resume.
func (s *System) ContinueTracking() {
	s.forEachHistory(func(h history.Rewindable) { h.ContinueTracking() })
	s.currentRound = s.latestRound
	s.tracking = true
	s.restoreLiveState(s.latestRound)
}

// CutOffAtMarker truncates all histories to the current round, making
// it the latest, and resumes tracking. A finished round that was
// truncated away is cleared. Idempotent.
func (s *System) CutOffAtMarker() {
	s.forEachHistory(func(h history.Rewindable) { h.CutOffAtMarker() })
	s.latestRound = s.currentRound
	if s.finishedRound > s.currentRound {
		s.finishedRound = -1
	}
	s.tracking = true
}

// ShiftTimescale moves every recorded round by the given offset.
func (s *System) ShiftTimescale(offset int) {
	s.forEachHistory(func(h history.Rewindable) { h.ShiftTimescale(offset) })
	s.earliestRound += offset
	s.currentRound += offset
	s.latestRound += offset
	if s.finishedRound >= 0 {
		s.finishedRound += offset
	}
}
