package engagement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"EmberFM/core/clock"
	"EmberFM/core/fault"
	"EmberFM/logger"
	"EmberFM/model"
	"EmberFM/repository"
)

// CatalogCache mirrors the hot-track list into a cache so dashboard reads
// do not hit the database. Failures are logged, never surfaced.
type CatalogCache interface {
	Refresh(ctx context.Context, tracks []model.Track) error
}

// Engine owns heat scoring and the preview→vote→full playback sequence.
// It depends on the track store for vote persistence and is otherwise
// independent of the lifecycle controller.
//
// The in-memory track list is replaced wholesale on every mutation, so a
// reader never observes a half-applied vote.
type Engine struct {
	repo       repository.TrackRepository
	cache      CatalogCache
	clk        clock.Clock
	previewCap time.Duration

	mu      sync.Mutex
	list    []model.Track
	sess    *session
	sessGen int

	onAdvance  []func(AdvanceReason)
	onPlayback []func(Snapshot)
}

// NewEngine wires an engine. cache may be nil.
func NewEngine(repo repository.TrackRepository, cache CatalogCache, clk clock.Clock, previewCap time.Duration) *Engine {
	return &Engine{
		repo:       repo,
		cache:      cache,
		clk:        clk,
		previewCap: previewCap,
	}
}

// OnAdvance registers a listener for the advance signal. Choosing the
// next candidate track is the host's job, not the engine's.
func (e *Engine) OnAdvance(fn func(AdvanceReason)) {
	e.mu.Lock()
	e.onAdvance = append(e.onAdvance, fn)
	e.mu.Unlock()
}

// OnPlayback registers a listener for playback snapshot changes.
func (e *Engine) OnPlayback(fn func(Snapshot)) {
	e.mu.Lock()
	e.onPlayback = append(e.onPlayback, fn)
	e.mu.Unlock()
}

// Refresh reloads the catalog from the store. An empty catalog is
// replaced by a single placeholder entry that rejects voting and playback.
func (e *Engine) Refresh(ctx context.Context) error {
	tracks, err := e.repo.ListTracks(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}
	if len(tracks) == 0 {
		tracks = []model.Track{model.PlaceholderTrack()}
	}

	e.mu.Lock()
	e.list = tracks
	e.mu.Unlock()

	e.refreshCache(ctx, tracks)
	return nil
}

func (e *Engine) refreshCache(ctx context.Context, tracks []model.Track) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Refresh(ctx, tracks); err != nil {
		logger.Warn("[Engagement] 热度榜缓存刷新失败", logger.ErrorField(err))
	}
}

// Tracks returns a copy of the current track list.
func (e *Engine) Tracks() []model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Track, len(e.list))
	copy(out, e.list)
	return out
}

// Track finds a track in the local list.
func (e *Engine) Track(id string) (model.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.list {
		if t.ID == id {
			return t, true
		}
	}
	return model.Track{}, false
}

// AddTrack mirrors a freshly uploaded track into the local list,
// displacing the placeholder if it was showing.
func (e *Engine) AddTrack(ctx context.Context, track model.Track) {
	e.mu.Lock()
	next := make([]model.Track, 0, len(e.list)+1)
	for _, t := range e.list {
		if !t.Placeholder {
			next = append(next, t)
		}
	}
	next = append(next, track)
	e.list = next
	listCopy := make([]model.Track, len(next))
	copy(listCopy, next)
	e.mu.Unlock()

	e.refreshCache(ctx, listCopy)
}

// Vote applies a vote: bump the counter, recompute the heat score from
// the locally-held snapshot, persist both, and mirror the new values into
// the in-memory list so the UI reflects the vote without a re-fetch.
// A failed persist leaves the track's prior state untouched.
func (e *Engine) Vote(ctx context.Context, trackID string, direction model.VoteDirection) (*model.Track, error) {
	if direction != model.VoteUp && direction != model.VoteDown {
		return nil, fault.Newf(fault.KindValidation, "unknown vote direction %q", direction)
	}

	e.mu.Lock()
	var snapshot *model.Track
	for i := range e.list {
		if e.list[i].ID == trackID {
			t := e.list[i]
			snapshot = &t
			break
		}
	}
	e.mu.Unlock()

	if snapshot == nil {
		return nil, fault.Newf(fault.KindNotFound, "track %s not found", trackID)
	}
	if snapshot.Placeholder {
		return nil, fault.Newf(fault.KindValidation, "this is a placeholder track; upload some music to start voting")
	}

	now := e.clk.Now()
	updated := *snapshot
	if direction == model.VoteUp {
		updated.Upvotes++
	} else {
		updated.Downvotes++
	}
	updated.HeatScore = HeatScore(updated.Upvotes, updated.Downvotes)
	updated.UpdatedAt = now

	// The counter goes to the store as a relative delta; the heat score is
	// the one derived from our snapshot. Concurrent voters can race on the
	// derived score and the next catalog fetch reconciles.
	if err := e.repo.ApplyVote(ctx, trackID, direction, updated.HeatScore); err != nil {
		return nil, err
	}

	e.mu.Lock()
	next := make([]model.Track, len(e.list))
	copy(next, e.list)
	for i := range next {
		if next[i].ID == trackID {
			next[i] = updated
			break
		}
	}
	e.list = next
	listCopy := make([]model.Track, len(next))
	copy(listCopy, next)

	var fireAdvance bool
	var snap Snapshot
	var notifyPlayback bool
	if e.sess != nil && e.sess.track.ID == trackID {
		e.sess.track = updated
		if e.sess.mode == ModePreview && !e.sess.hasVoted {
			e.sess.hasVoted = true
			if direction == model.VoteUp && !e.sess.modeMoved {
				// Up-vote before expiry: cancel the cap and reload the
				// same track full-length. Only one mode move per session.
				// The full source starts over, so position resets.
				e.sess.stopCapLocked()
				e.sess.mode = ModeFull
				e.sess.modeMoved = true
				e.sess.playedFor = 0
				if e.sess.isPlaying {
					e.sess.resumedAt = now
				}
				snap = e.sess.snapshot(now)
				notifyPlayback = true
			} else if direction == model.VoteDown {
				e.sess.stopCapLocked()
				fireAdvance = !e.sess.advanced
				e.sess.advanced = true
				e.sess = nil
				e.sessGen++
				snap = Snapshot{}
				notifyPlayback = true
			}
		}
	}
	e.mu.Unlock()

	logger.Info("[Engagement] 投票成功",
		logger.String("trackId", trackID),
		logger.String("direction", string(direction)),
		logger.Int("heatScore", updated.HeatScore))

	e.refreshCache(ctx, listCopy)
	if notifyPlayback {
		e.notifyPlayback(snap)
	}
	if fireAdvance {
		e.fireAdvance(AdvanceDownvote)
	}
	return &updated, nil
}

// LoadTrack discards any active session and creates a fresh one for the
// given track. Playback does not auto-start. asPreview selects the
// truncated source; the default posture for discovery.
func (e *Engine) LoadTrack(track model.Track, asPreview bool) error {
	if track.Placeholder {
		return fault.Newf(fault.KindValidation, "this is a placeholder track; upload some music to start listening")
	}

	mode := ModeFull
	if asPreview {
		mode = ModePreview
	}

	e.mu.Lock()
	if e.sess != nil {
		e.sess.stopCapLocked()
	}
	e.sessGen++
	e.sess = &session{
		track:      track,
		mode:       mode,
		generation: e.sessGen,
	}
	snap := e.sess.snapshot(e.clk.Now())
	e.mu.Unlock()

	e.notifyPlayback(snap)
	return nil
}

// TogglePlayPause flips playback. The first start in preview mode arms
// the wall-clock cap; pausing does not disarm it.
func (e *Engine) TogglePlayPause() (Snapshot, error) {
	e.mu.Lock()
	if e.sess == nil {
		e.mu.Unlock()
		return Snapshot{}, fault.Newf(fault.KindValidation, "no track loaded")
	}
	now := e.clk.Now()
	e.sess.isPlaying = !e.sess.isPlaying
	if e.sess.isPlaying {
		e.sess.resumedAt = now
	} else {
		e.sess.playedFor += now.Sub(e.sess.resumedAt)
	}
	if e.sess.isPlaying && e.sess.mode == ModePreview && !e.sess.capArmed {
		gen := e.sess.generation
		e.sess.capArmed = true
		e.sess.capTimer = e.clk.AfterFunc(e.previewCap, func() {
			e.expirePreview(gen)
		})
	}
	snap := e.sess.snapshot(now)
	e.mu.Unlock()

	e.notifyPlayback(snap)
	return snap, nil
}

// expirePreview handles the 30s cap: pause, treat as an implicit skip,
// signal the host to advance. Fires at most once per session.
func (e *Engine) expirePreview(gen int) {
	e.mu.Lock()
	if e.sess == nil || e.sess.generation != gen || e.sess.mode != ModePreview {
		e.mu.Unlock()
		return
	}
	e.sess.stopCapLocked()
	fire := !e.sess.advanced
	e.sess.advanced = true
	trackID := e.sess.track.ID
	e.sess = nil
	e.sessGen++
	e.mu.Unlock()

	logger.Info("[Engagement] 试听到达上限，自动切歌", logger.String("trackId", trackID))
	e.notifyPlayback(Snapshot{})
	if fire {
		e.fireAdvance(AdvanceExpired)
	}
}

// Skip is the host advancing past the current track explicitly; the
// session is destroyed without an advance signal.
func (e *Engine) Skip() {
	e.mu.Lock()
	if e.sess == nil {
		e.mu.Unlock()
		return
	}
	e.sess.stopCapLocked()
	e.sess = nil
	e.sessGen++
	e.mu.Unlock()

	e.notifyPlayback(Snapshot{})
}

// Session returns the current playback snapshot.
func (e *Engine) Session() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.snapshot(e.clk.Now())
}

func (e *Engine) fireAdvance(reason AdvanceReason) {
	e.mu.Lock()
	fns := make([]func(AdvanceReason), len(e.onAdvance))
	copy(fns, e.onAdvance)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(reason)
	}
}

func (e *Engine) notifyPlayback(snap Snapshot) {
	e.mu.Lock()
	fns := make([]func(Snapshot), len(e.onPlayback))
	copy(fns, e.onPlayback)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
