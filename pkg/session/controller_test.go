package session_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/stories_viewer/pkg/catalog"
	"github.com/Dicklesworthstone/stories_viewer/pkg/history"
	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
	"github.com/Dicklesworthstone/stories_viewer/pkg/playback"
	"github.com/Dicklesworthstone/stories_viewer/pkg/session"
)

// memoryRecorder is a Recorder that keeps views in a slice.
type memoryRecorder struct {
	mu    sync.Mutex
	views []history.View
	err   error
}

func (m *memoryRecorder) RecordView(_ context.Context, v history.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.views = append(m.views, v)
	return nil
}

func (m *memoryRecorder) storyIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, len(m.views))
	for i, v := range m.views {
		ids[i] = v.StoryID
	}
	return ids
}

func scenarioRecords() []model.StoryRecord {
	return []model.StoryRecord{
		{ID: 1, Image: "https://img.example/a.jpg", User: "alice"},
		{ID: 2, Image: "https://img.example/b.jpg", User: "alice"},
		{ID: 3, Image: "https://img.example/c.jpg", User: "bob"},
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

func newController(t *testing.T, records []model.StoryRecord, opts session.Options) (*session.Controller, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	opts.Clock = clock
	if opts.NewSessionID == nil {
		opts.NewSessionID = sequentialIDs()
	}
	c := session.New(records, opts)
	t.Cleanup(c.Close)
	return c, clock
}

func cursor(c *session.Controller) (playback.Phase, int, int) {
	st := c.State()
	return st.Phase, st.UserIndex, st.StoryIndex
}

func TestNew_EmptyFeedUsesFallback(t *testing.T) {
	c, _ := newController(t, nil, session.Options{})

	assert.True(t, c.UsedFallback())
	assert.Equal(t, []string{"user1", "user2", "user3"}, c.Catalog().Usernames())
	assert.False(t, c.IsOpen())
}

func TestOpen_Validation(t *testing.T) {
	c, _ := newController(t, scenarioRecords(), session.Options{})

	assert.ErrorIs(t, c.Open(2), playback.ErrUserOutOfRange)
	assert.ErrorIs(t, c.Open(-1), playback.ErrUserOutOfRange)
	assert.ErrorIs(t, c.OpenUser("carol"), catalog.ErrUnknownUser)
	assert.False(t, c.IsOpen())

	require.NoError(t, c.OpenUser("bob"))
	phase, u, s := cursor(c)
	assert.Equal(t, playback.PhaseRunning, phase)
	assert.Equal(t, 1, u)
	assert.Equal(t, 0, s)
}

func TestScenario_RecordsHistory(t *testing.T) {
	rec := &memoryRecorder{}
	c, clock := newController(t, scenarioRecords(), session.Options{History: rec})

	require.NoError(t, c.Open(0))
	c.Next()
	c.Next()
	assert.Equal(t, []int{1, 2, 3}, rec.storyIDs())

	story, st, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, 3, story.ID)
	assert.Equal(t, 1, st.UserIndex)

	c.Next()
	assert.False(t, c.IsOpen())
	_, _, ok = c.Current()
	assert.False(t, ok)

	for _, v := range rec.views {
		assert.Equal(t, "session-1", v.SessionID)
		assert.True(t, v.ViewedAt.Equal(clock.Now()))
	}

	require.NoError(t, c.Open(1))
	assert.Equal(t, "session-2", c.SessionID())
}

func TestOpen_RejectedIndexKeepsSessionID(t *testing.T) {
	rec := &memoryRecorder{}
	c, _ := newController(t, scenarioRecords(), session.Options{History: rec})

	require.NoError(t, c.Open(0))
	assert.Equal(t, "session-1", c.SessionID())

	assert.ErrorIs(t, c.Open(5), playback.ErrUserOutOfRange)
	assert.Equal(t, "session-1", c.SessionID())
	assert.True(t, c.IsOpen())

	c.Next()
	require.Len(t, rec.storyIDs(), 2)
	for _, v := range rec.views {
		assert.Equal(t, "session-1", v.SessionID)
	}
}

func TestHistoryStore_Integration(t *testing.T) {
	store, err := history.Open(history.MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	c, _ := newController(t, scenarioRecords(), session.Options{History: store})
	require.NoError(t, c.Open(0))
	c.Next()

	views, err := store.Views(context.Background(), c.SessionID())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "alice", views[1].User)
	assert.Equal(t, 2, views[1].StoryID)
}

func TestHistoryFailureIsNotFatal(t *testing.T) {
	rec := &memoryRecorder{err: errors.New("disk full")}
	c, _ := newController(t, scenarioRecords(), session.Options{History: rec})

	require.NoError(t, c.Open(0))
	c.Next()
	_, u, s := cursor(c)
	assert.Equal(t, 0, u)
	assert.Equal(t, 1, s)
	assert.True(t, c.AllSeen("alice"))
}

func TestAutoAdvanceRecordsView(t *testing.T) {
	rec := &memoryRecorder{}
	c, clock := newController(t, scenarioRecords(), session.Options{History: rec})

	require.NoError(t, c.Open(0))
	clock.Advance(5 * time.Second)

	assert.Eventually(t, func() bool {
		return len(rec.storyIDs()) == 2
	}, time.Second, 5*time.Millisecond)
	_, u, s := cursor(c)
	assert.Equal(t, 0, u)
	assert.Equal(t, 1, s)
}

func TestSkipUnavailable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.jpg"), []byte("jpeg"), 0644))

	records := []model.StoryRecord{
		{ID: 1, Image: "local.jpg", User: "alice"},
		{ID: 2, Image: "missing.jpg", User: "alice"},
		{ID: 3, Image: "https://img.example/c.jpg", User: "bob"},
		{ID: 4, Image: "ftp://img.example/d.jpg", User: "bob"},
	}

	t.Run("skips to next available", func(t *testing.T) {
		rec := &memoryRecorder{}
		c, _ := newController(t, records, session.Options{
			History:         rec,
			Probe:           session.ContentProber(dir),
			SkipUnavailable: true,
		})

		require.NoError(t, c.Open(0))
		c.Next()

		phase, u, s := cursor(c)
		assert.Equal(t, playback.PhaseRunning, phase)
		assert.Equal(t, 1, u)
		assert.Equal(t, 0, s)
		// The skipped story is neither recorded nor marked seen.
		assert.Equal(t, []int{1, 3}, rec.storyIDs())
		assert.Equal(t, 1, c.SeenCount("alice"))
		assert.False(t, c.AllSeen("alice"))
	})

	t.Run("user with only missing images stays unseen", func(t *testing.T) {
		rec := &memoryRecorder{}
		c, _ := newController(t, []model.StoryRecord{
			{ID: 1, Image: "gone-1.jpg", User: "ghost"},
			{ID: 2, Image: "gone-2.jpg", User: "ghost"},
			{ID: 3, Image: "https://img.example/c.jpg", User: "bob"},
		}, session.Options{
			History:         rec,
			Probe:           session.ContentProber(dir),
			SkipUnavailable: true,
		})

		require.NoError(t, c.Open(0))
		_, u, _ := cursor(c)
		assert.Equal(t, 1, u)
		assert.Equal(t, 0, c.SeenCount("ghost"))
		assert.Equal(t, []int{3}, rec.storyIDs())
	})

	t.Run("unavailable last story ends the session", func(t *testing.T) {
		c, _ := newController(t, records, session.Options{
			Probe:           session.ContentProber(dir),
			SkipUnavailable: true,
		})

		require.NoError(t, c.Open(1))
		c.Next()
		assert.False(t, c.IsOpen())
	})

	t.Run("disabled keeps the story", func(t *testing.T) {
		c, _ := newController(t, records, session.Options{
			Probe: session.ContentProber(dir),
		})

		require.NoError(t, c.Open(0))
		c.Next()
		_, u, s := cursor(c)
		assert.Equal(t, 0, u)
		assert.Equal(t, 1, s)
		assert.True(t, c.AllSeen("alice"), "a story left on screen counts as shown")
	})
}

func TestReload(t *testing.T) {
	c, _ := newController(t, scenarioRecords(), session.Options{})

	applied := c.Reload([]model.StoryRecord{
		{ID: 9, Image: "https://img.example/z.jpg", User: "zed"},
	})
	assert.True(t, applied)
	assert.Equal(t, []string{"zed"}, c.Catalog().Usernames())

	require.NoError(t, c.Open(0))
	applied = c.Reload(scenarioRecords())
	assert.False(t, applied)
	assert.True(t, c.ReloadPending())
	assert.Equal(t, []string{"zed"}, c.Catalog().Usernames(), "catalog must not change under an open session")

	c.Close()
	assert.False(t, c.ReloadPending())
	assert.Equal(t, []string{"alice", "bob"}, c.Catalog().Usernames())
}

func TestReload_EmptyUsesFallback(t *testing.T) {
	c, _ := newController(t, scenarioRecords(), session.Options{})
	require.False(t, c.UsedFallback())

	c.Reload(nil)
	assert.True(t, c.UsedFallback())
	assert.Equal(t, 3, c.Catalog().UserCount())
}

func TestReload_DeferredUntilEndOfStories(t *testing.T) {
	c, _ := newController(t, scenarioRecords(), session.Options{})
	require.NoError(t, c.Open(1))
	c.Reload([]model.StoryRecord{{ID: 9, Image: "https://x.example/9", User: "zed"}})

	c.Next() // past the last story
	assert.False(t, c.IsOpen())
	assert.Equal(t, []string{"zed"}, c.Catalog().Usernames())
}

func TestVisibility(t *testing.T) {
	c, clock := newController(t, scenarioRecords(), session.Options{})

	c.SetVisibility(session.Hidden)
	c.SetVisibility(session.Visible)
	assert.False(t, c.IsOpen(), "visibility must not open a session")

	require.NoError(t, c.Open(0))
	clock.Advance(2 * time.Second)

	c.SetVisibility(session.Hidden)
	st := c.State()
	assert.Equal(t, playback.PhasePaused, st.Phase)
	assert.Equal(t, 3*time.Second, st.Remaining)

	c.SetVisibility(session.Hidden)
	assert.Equal(t, playback.PhasePaused, c.State().Phase)

	clock.Advance(10 * time.Second)
	c.SetVisibility(session.Visible)
	st = c.State()
	assert.Equal(t, playback.PhaseRunning, st.Phase)
	assert.Equal(t, 3*time.Second, st.Remaining)
	assert.Equal(t, 0, st.StoryIndex)
}

func TestTogglePause(t *testing.T) {
	c, _ := newController(t, scenarioRecords(), session.Options{})

	c.TogglePause()
	assert.Equal(t, playback.PhaseStopped, c.State().Phase)

	require.NoError(t, c.Open(0))
	c.TogglePause()
	assert.Equal(t, playback.PhasePaused, c.State().Phase)
	c.TogglePause()
	assert.Equal(t, playback.PhaseRunning, c.State().Phase)
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name    string
		intents []session.Intent
		phase   playback.Phase
		user    int
		story   int
	}{
		{"open", []session.Intent{{Kind: session.IntentOpen, User: 1}}, playback.PhaseRunning, 1, 0},
		{"next", []session.Intent{{Kind: session.IntentOpen}, {Kind: session.IntentNext}}, playback.PhaseRunning, 0, 1},
		{"previous across users", []session.Intent{{Kind: session.IntentOpen, User: 1}, {Kind: session.IntentPrevious}}, playback.PhaseRunning, 0, 1},
		{"pause", []session.Intent{{Kind: session.IntentOpen}, {Kind: session.IntentPause}}, playback.PhasePaused, 0, 0},
		{"resume", []session.Intent{{Kind: session.IntentOpen}, {Kind: session.IntentPause}, {Kind: session.IntentResume}}, playback.PhaseRunning, 0, 0},
		{"toggle", []session.Intent{{Kind: session.IntentOpen}, {Kind: session.IntentTogglePause}}, playback.PhasePaused, 0, 0},
		{"close", []session.Intent{{Kind: session.IntentOpen, User: 1}, {Kind: session.IntentClose}}, playback.PhaseStopped, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(t, scenarioRecords(), session.Options{})
			for _, in := range tt.intents {
				require.NoError(t, c.Dispatch(in))
			}
			phase, u, s := cursor(c)
			assert.Equal(t, tt.phase, phase)
			assert.Equal(t, tt.user, u)
			assert.Equal(t, tt.story, s)
		})
	}

	c, _ := newController(t, scenarioRecords(), session.Options{})
	assert.ErrorIs(t, c.Dispatch(session.Intent{Kind: session.IntentOpen, User: 5}), playback.ErrUserOutOfRange)
	assert.Error(t, c.Dispatch(session.Intent{Kind: session.IntentKind(99)}))
}

func TestSeenMarks(t *testing.T) {
	c, _ := newController(t, scenarioRecords(), session.Options{
		Seen: map[string]map[int]bool{"alice": {1: true}, "ghost": {7: true}},
	})

	assert.Equal(t, 1, c.SeenCount("alice"))
	assert.False(t, c.AllSeen("alice"))
	assert.Equal(t, 0, c.SeenCount("bob"))
	assert.Equal(t, 0, c.SeenCount("ghost"))

	require.NoError(t, c.Open(0))
	c.Next()
	assert.True(t, c.AllSeen("alice"))
	assert.False(t, c.AllSeen("bob"))

	seen := c.Seen()
	delete(seen["alice"], 1)
	assert.Equal(t, 2, c.SeenCount("alice"), "Seen must return a copy")
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	c, _ := newController(t, scenarioRecords(), session.Options{})
	stream := playback.NewEventStream(16)
	unsubscribe := c.Subscribe(stream)
	defer unsubscribe()

	require.NoError(t, c.Open(0))
	c.Close()

	var kinds []playback.EventKind
	for len(stream.Events()) > 0 {
		kinds = append(kinds, (<-stream.Events()).Kind)
	}
	assert.Equal(t, []playback.EventKind{
		playback.EventStoryChanged,
		playback.EventTimerStarted,
		playback.EventClosed,
	}, kinds)
}
