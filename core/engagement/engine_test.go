package engagement

import (
	"context"
	"sync"
	"testing"
	"time"

	"EmberFM/core/clock"
	"EmberFM/core/fault"
	"EmberFM/model"
)

type voteCall struct {
	trackID   string
	direction model.VoteDirection
	heatScore int
}

type fakeTrackStore struct {
	mu      sync.Mutex
	tracks  []model.Track
	voteErr error
	votes   []voteCall
}

func (s *fakeTrackStore) GetTrackByID(ctx context.Context, id string) (*model.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fault.Newf(fault.KindNotFound, "track %s not found", id)
}

func (s *fakeTrackStore) ListTracks(ctx context.Context) ([]model.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Track, len(s.tracks))
	copy(out, s.tracks)
	return out, nil
}

func (s *fakeTrackStore) CreateTrack(ctx context.Context, track *model.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, *track)
	return nil
}

func (s *fakeTrackStore) ApplyVote(ctx context.Context, id string, direction model.VoteDirection, heatScore int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voteErr != nil {
		return s.voteErr
	}
	s.votes = append(s.votes, voteCall{trackID: id, direction: direction, heatScore: heatScore})
	return nil
}

func sampleTrack() model.Track {
	return model.Track{
		ID:         "t1",
		Title:      "Neon Rain",
		Artist:     "Glass Harbor",
		AudioURL:   "https://cdn.example.com/t1.mp3",
		PreviewURL: "https://cdn.example.com/t1-preview.mp3",
		HeatScore:  model.HeatBaseline,
	}
}

func newTestEngine(t *testing.T, store *fakeTrackStore, clk clock.Clock) *Engine {
	t.Helper()
	e := NewEngine(store, nil, clk, 30*time.Second)
	if err := e.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return e
}

func TestEmptyCatalogShowsPlaceholder(t *testing.T) {
	e := newTestEngine(t, &fakeTrackStore{}, clock.NewFake())

	tracks := e.Tracks()
	if len(tracks) != 1 || !tracks[0].Placeholder {
		t.Fatalf("expected a single placeholder, got %+v", tracks)
	}

	if _, err := e.Vote(context.Background(), tracks[0].ID, model.VoteUp); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("vote on placeholder: got %v, want validation fault", err)
	}
	if err := e.LoadTrack(tracks[0], true); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("load placeholder: got %v, want validation fault", err)
	}
}

func TestAddTrackDisplacesPlaceholder(t *testing.T) {
	e := newTestEngine(t, &fakeTrackStore{}, clock.NewFake())

	e.AddTrack(context.Background(), sampleTrack())
	tracks := e.Tracks()
	if len(tracks) != 1 || tracks[0].ID != "t1" {
		t.Fatalf("placeholder not displaced: %+v", tracks)
	}
}

func TestVoteUpdatesCountersAndHeat(t *testing.T) {
	store := &fakeTrackStore{}
	track := sampleTrack()
	track.Upvotes = 2
	track.Downvotes = 1
	track.HeatScore = HeatScore(2, 1)
	store.tracks = []model.Track{track}
	e := newTestEngine(t, store, clock.NewFake())

	updated, err := e.Vote(context.Background(), "t1", model.VoteUp)
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if updated.Upvotes != 3 || updated.Downvotes != 1 {
		t.Fatalf("counters = %d/%d, want 3/1", updated.Upvotes, updated.Downvotes)
	}
	if updated.HeatScore != 90 {
		t.Fatalf("heat = %d, want 90", updated.HeatScore)
	}

	store.mu.Lock()
	votes := append([]voteCall(nil), store.votes...)
	store.mu.Unlock()
	if len(votes) != 1 || votes[0].heatScore != 90 || votes[0].direction != model.VoteUp {
		t.Fatalf("persisted vote = %+v", votes)
	}

	// The in-memory list reflects the vote without a re-fetch.
	got, ok := e.Track("t1")
	if !ok || got.HeatScore != 90 {
		t.Fatalf("list not updated: %+v", got)
	}
}

func TestFailedVoteLeavesStateUntouched(t *testing.T) {
	store := &fakeTrackStore{tracks: []model.Track{sampleTrack()}}
	store.voteErr = fault.Newf(fault.KindTransient, "store is down")
	e := newTestEngine(t, store, clock.NewFake())

	if _, err := e.Vote(context.Background(), "t1", model.VoteUp); err == nil {
		t.Fatal("expected the persist failure to surface")
	}
	got, _ := e.Track("t1")
	if got.Upvotes != 0 || got.HeatScore != model.HeatBaseline {
		t.Fatalf("failed vote mutated the track: %+v", got)
	}
}

func TestUnknownVoteDirectionRejected(t *testing.T) {
	e := newTestEngine(t, &fakeTrackStore{tracks: []model.Track{sampleTrack()}}, clock.NewFake())
	if _, err := e.Vote(context.Background(), "t1", model.VoteDirection("sideways")); !fault.IsKind(err, fault.KindValidation) {
		t.Fatalf("got %v, want validation fault", err)
	}
}

func TestPreviewCapExpiresExactlyOnce(t *testing.T) {
	clk := clock.NewFake()
	e := newTestEngine(t, &fakeTrackStore{tracks: []model.Track{sampleTrack()}}, clk)

	var advances []AdvanceReason
	e.OnAdvance(func(r AdvanceReason) { advances = append(advances, r) })

	track, _ := e.Track("t1")
	if err := e.LoadTrack(track, true); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if clk.PendingTimers() != 0 {
		t.Fatal("loading must not start playback or arm the cap")
	}

	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}
	if clk.PendingTimers() != 1 {
		t.Fatalf("cap timers armed = %d, want 1", clk.PendingTimers())
	}

	// Pausing does not disarm the wall-clock cap, and resuming does not
	// arm a second timer.
	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if clk.PendingTimers() != 1 {
		t.Fatalf("cap timers armed after pause/resume = %d, want 1", clk.PendingTimers())
	}

	clk.Advance(30 * time.Second)

	if snap := e.Session(); snap.Active {
		t.Fatalf("session survived the cap: %+v", snap)
	}
	if len(advances) != 1 || advances[0] != AdvanceExpired {
		t.Fatalf("advance signals = %v, want exactly one %q", advances, AdvanceExpired)
	}

	clk.Advance(time.Minute)
	if len(advances) != 1 {
		t.Fatalf("advance fired again after session teardown: %v", advances)
	}
}

func TestUpvoteDuringPreviewUnlocksFullPlayback(t *testing.T) {
	clk := clock.NewFake()
	e := newTestEngine(t, &fakeTrackStore{tracks: []model.Track{sampleTrack()}}, clk)

	var advances []AdvanceReason
	e.OnAdvance(func(r AdvanceReason) { advances = append(advances, r) })

	track, _ := e.Track("t1")
	if err := e.LoadTrack(track, true); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}

	if _, err := e.Vote(context.Background(), "t1", model.VoteUp); err != nil {
		t.Fatalf("Vote: %v", err)
	}

	snap := e.Session()
	if !snap.Active || snap.Mode != ModeFull {
		t.Fatalf("session after upvote = %+v, want active full mode", snap)
	}
	if !snap.HasVoted {
		t.Fatal("session should remember the vote")
	}
	if clk.PendingTimers() != 0 {
		t.Fatal("cap timer survived the mode transition")
	}

	// The cap deadline passing must not tear down full playback.
	clk.Advance(time.Minute)
	if snap := e.Session(); !snap.Active {
		t.Fatal("full-mode session torn down by the stale cap")
	}
	if len(advances) != 0 {
		t.Fatalf("unexpected advance signals: %v", advances)
	}
}

func TestDownvoteDuringPreviewAdvances(t *testing.T) {
	clk := clock.NewFake()
	e := newTestEngine(t, &fakeTrackStore{tracks: []model.Track{sampleTrack()}}, clk)

	var advances []AdvanceReason
	e.OnAdvance(func(r AdvanceReason) { advances = append(advances, r) })

	track, _ := e.Track("t1")
	if err := e.LoadTrack(track, true); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}

	updated, err := e.Vote(context.Background(), "t1", model.VoteDown)
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if updated.Downvotes != 1 {
		t.Fatalf("downvote not counted: %+v", updated)
	}

	if snap := e.Session(); snap.Active {
		t.Fatalf("session survived the downvote: %+v", snap)
	}
	if len(advances) != 1 || advances[0] != AdvanceDownvote {
		t.Fatalf("advance signals = %v, want exactly one %q", advances, AdvanceDownvote)
	}
	if clk.PendingTimers() != 0 {
		t.Fatal("cap timer leaked past the session")
	}
}

func TestSkipDestroysSessionSilently(t *testing.T) {
	clk := clock.NewFake()
	e := newTestEngine(t, &fakeTrackStore{tracks: []model.Track{sampleTrack()}}, clk)

	var advances []AdvanceReason
	e.OnAdvance(func(r AdvanceReason) { advances = append(advances, r) })

	track, _ := e.Track("t1")
	if err := e.LoadTrack(track, true); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}
	e.Skip()

	if snap := e.Session(); snap.Active {
		t.Fatalf("session survived the skip: %+v", snap)
	}
	if len(advances) != 0 {
		t.Fatalf("skip must not fire the advance signal, got %v", advances)
	}
	if clk.PendingTimers() != 0 {
		t.Fatal("cap timer leaked past the skip")
	}
}

func TestReloadReplacesSession(t *testing.T) {
	clk := clock.NewFake()
	store := &fakeTrackStore{tracks: []model.Track{sampleTrack(), {
		ID:         "t2",
		Title:      "Static Bloom",
		Artist:     "Glass Harbor",
		AudioURL:   "https://cdn.example.com/t2.mp3",
		PreviewURL: "https://cdn.example.com/t2-preview.mp3",
		HeatScore:  model.HeatBaseline,
	}}}
	e := newTestEngine(t, store, clk)

	t1, _ := e.Track("t1")
	t2, _ := e.Track("t2")

	if err := e.LoadTrack(t1, true); err != nil {
		t.Fatalf("LoadTrack t1: %v", err)
	}
	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}
	if err := e.LoadTrack(t2, true); err != nil {
		t.Fatalf("LoadTrack t2: %v", err)
	}

	snap := e.Session()
	if snap.Track.ID != "t2" || snap.Playing {
		t.Fatalf("fresh session = %+v, want t2 paused", snap)
	}
	// Only the old session's cap could have been armed; it must be gone.
	if clk.PendingTimers() != 0 {
		t.Fatal("previous session's cap timer survived the reload")
	}

	// The old track's cap deadline passing must not touch the new session.
	clk.Advance(time.Minute)
	if snap := e.Session(); !snap.Active {
		t.Fatal("stale cap tore down the replacement session")
	}
}

func TestSnapshotTracksPlaybackPosition(t *testing.T) {
	clk := clock.NewFake()
	e := newTestEngine(t, &fakeTrackStore{tracks: []model.Track{sampleTrack()}}, clk)

	track, _ := e.Track("t1")
	if err := e.LoadTrack(track, true); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if pos := e.Session().PositionSeconds; pos != 0 {
		t.Fatalf("position before playback = %v, want 0", pos)
	}

	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("play: %v", err)
	}
	clk.Advance(10 * time.Second)
	if pos := e.Session().PositionSeconds; pos != 10 {
		t.Fatalf("position while playing = %v, want 10", pos)
	}

	// Paused time does not count.
	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	clk.Advance(5 * time.Second)
	if pos := e.Session().PositionSeconds; pos != 10 {
		t.Fatalf("position while paused = %v, want 10", pos)
	}

	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	clk.Advance(5 * time.Second)
	if pos := e.Session().PositionSeconds; pos != 15 {
		t.Fatalf("position after resume = %v, want 15", pos)
	}

	// The full source starts over after an upvote.
	if _, err := e.Vote(context.Background(), "t1", model.VoteUp); err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if pos := e.Session().PositionSeconds; pos != 0 {
		t.Fatalf("position after mode move = %v, want 0", pos)
	}
	clk.Advance(7 * time.Second)
	if pos := e.Session().PositionSeconds; pos != 7 {
		t.Fatalf("position in full mode = %v, want 7", pos)
	}
}

func TestVoteAfterModeTransitionDoesNotMoveModeAgain(t *testing.T) {
	clk := clock.NewFake()
	e := newTestEngine(t, &fakeTrackStore{tracks: []model.Track{sampleTrack()}}, clk)

	var advances []AdvanceReason
	e.OnAdvance(func(r AdvanceReason) { advances = append(advances, r) })

	track, _ := e.Track("t1")
	if err := e.LoadTrack(track, true); err != nil {
		t.Fatalf("LoadTrack: %v", err)
	}
	if _, err := e.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}
	if _, err := e.Vote(context.Background(), "t1", model.VoteUp); err != nil {
		t.Fatalf("upvote: %v", err)
	}

	// A later downvote still counts but cannot yank the session around.
	if _, err := e.Vote(context.Background(), "t1", model.VoteDown); err != nil {
		t.Fatalf("downvote: %v", err)
	}
	snap := e.Session()
	if !snap.Active || snap.Mode != ModeFull {
		t.Fatalf("session after second vote = %+v, want active full mode", snap)
	}
	if len(advances) != 0 {
		t.Fatalf("unexpected advance signals: %v", advances)
	}
	got, _ := e.Track("t1")
	if got.Upvotes != 1 || got.Downvotes != 1 {
		t.Fatalf("counters = %d/%d, want 1/1", got.Upvotes, got.Downvotes)
	}
}
