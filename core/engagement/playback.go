package engagement

import (
	"time"

	"EmberFM/core/clock"
	"EmberFM/model"
)

// PlaybackMode selects between the truncated and the full audio source.
type PlaybackMode string

const (
	ModePreview PlaybackMode = "preview"
	ModeFull    PlaybackMode = "full"
)

// AdvanceReason says why the engine asks the host to move to the next
// candidate track. The engine never picks the next track itself.
type AdvanceReason string

const (
	AdvanceDownvote AdvanceReason = "downvote"
	AdvanceExpired  AdvanceReason = "preview_expired"
)

// session is the single live playback session. It is owned by the engine;
// at most one exists, and its cap timer dies with it.
type session struct {
	track     model.Track
	mode      PlaybackMode
	hasVoted  bool
	modeMoved bool // a session may transition mode at most once
	isPlaying bool

	// playedFor accumulates time across pauses; resumedAt marks when the
	// current play stretch began and is only meaningful while playing.
	playedFor time.Duration
	resumedAt time.Time

	capTimer   clock.Timer
	capArmed   bool
	advanced   bool // advance signal fires at most once per session
	generation int
}

// Snapshot is the read-only view of the playback session handed to the
// presentation layer.
type Snapshot struct {
	Active          bool         `json:"active"`
	Track           model.Track  `json:"track,omitempty"`
	Mode            PlaybackMode `json:"mode,omitempty"`
	HasVoted        bool         `json:"hasVoted"`
	Playing         bool         `json:"playing"`
	PositionSeconds float64      `json:"positionSeconds"`
}

func (s *session) snapshot(now time.Time) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	pos := s.playedFor
	if s.isPlaying {
		pos += now.Sub(s.resumedAt)
	}
	return Snapshot{
		Active:          true,
		Track:           s.track,
		Mode:            s.mode,
		HasVoted:        s.hasVoted,
		Playing:         s.isPlaying,
		PositionSeconds: pos.Seconds(),
	}
}

// stopCapLocked clears the 30s cap timer. Called on every transition out
// of preview playback so no two cap timers are ever live.
func (s *session) stopCapLocked() {
	if s.capTimer != nil {
		s.capTimer.Stop()
		s.capTimer = nil
	}
	s.capArmed = false
}
