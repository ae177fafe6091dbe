package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otobox/otobox/internal/domain/track"
)

func threeTracks() []track.Track {
	return []track.Track{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
		{ID: "c", Title: "C"},
	}
}

// drain pulls all buffered events so assertions on specific events are easy.
func drain(s *Store) []Event {
	var out []Event
	for {
		select {
		case e := <-s.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestReplaceAndPlay(t *testing.T) {
	s := NewStore()
	defer s.Close()

	err := s.ReplaceAndPlay(threeTracks(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Position())
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.ID)
	assert.True(t, s.IsPlaying())
	assert.Equal(t, 3, s.Len())

	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, EventTrackChanged, events[0].Type)
	assert.Equal(t, "b", events[0].Track.ID)
}

func TestReplaceAndPlay_IllFormedInput(t *testing.T) {
	s := NewStore()
	defer s.Close()

	assert.ErrorIs(t, s.ReplaceAndPlay(nil, 0), ErrEmptyList)
	assert.ErrorIs(t, s.ReplaceAndPlay(threeTracks(), 3), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.ReplaceAndPlay(threeTracks(), -1), ErrIndexOutOfRange)

	// Failed operations leave the store untouched.
	assert.Equal(t, NoPosition, s.Position())
	assert.False(t, s.IsPlaying())
	assert.Empty(t, drain(s))
}

func TestEnqueueOne_Dedup(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.True(t, s.EnqueueOne(track.Track{ID: "a", Title: "A"}))
	assert.Equal(t, 1, s.Len())

	// Same id, different object: must be a no-op.
	assert.False(t, s.EnqueueOne(track.Track{ID: "a", Title: "A (remaster)"}))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "A", s.Snapshot()[0].Title)

	// Numeric/string mismatch tolerance comes from trimmed string compare.
	assert.False(t, s.EnqueueOne(track.Track{ID: " a "}))
	assert.Equal(t, 1, s.Len())
}

func TestEnqueueMany_DedupPreservesOrder(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.ReplaceAndPlay(threeTracks(), 0))

	appended := s.EnqueueMany([]track.Track{
		{ID: "b"}, // duplicate
		{ID: "d", Title: "D"},
		{ID: "a"}, // duplicate
		{ID: "e", Title: "E"},
	})
	assert.Equal(t, 2, appended)

	ids := make([]string, 0)
	for _, tr := range s.Snapshot() {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestPlayOrEnqueueAndPlay_ExistingKeepsCanonicalIdentity(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.ReplaceAndPlay([]track.Track{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
	}, 0))
	s.SetPlaying(false)

	// Same id as the queued B but a different descriptor object.
	s.PlayOrEnqueueAndPlay(track.Track{ID: "b", Title: "B (from search)"})

	assert.Equal(t, 1, s.Position())
	assert.Equal(t, 2, s.Len())
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "B", cur.Title, "queue entry is the canonical identity")
	assert.True(t, s.IsPlaying())
}

func TestPlayOrEnqueueAndPlay_NewTrackAppends(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.ReplaceAndPlay(threeTracks(), 0))
	s.PlayOrEnqueueAndPlay(track.Track{ID: "d", Title: "D"})

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 3, s.Position())
	cur, _ := s.Current()
	assert.Equal(t, "d", cur.ID)
	assert.True(t, s.IsPlaying())
}

func TestAdvance_BoundaryLoopOff(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.ReplaceAndPlay(threeTracks(), 2))
	s.SetPlaying(false)
	drain(s)

	s.Advance()

	// No wrap: position, current and playing intent all unchanged.
	assert.Equal(t, 2, s.Position())
	cur, _ := s.Current()
	assert.Equal(t, "c", cur.ID)
	assert.False(t, s.IsPlaying())
	assert.Empty(t, drain(s), "boundary no-op must not emit events")
}

func TestAdvance_BoundaryLoopOn(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.ReplaceAndPlay(threeTracks(), 2))
	s.ToggleLoop()
	drain(s)

	s.Advance()

	assert.Equal(t, 0, s.Position())
	cur, _ := s.Current()
	assert.Equal(t, "a", cur.ID)
	assert.True(t, s.IsPlaying())
}

func TestRetreat_Boundaries(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.ReplaceAndPlay(threeTracks(), 0))

	s.Retreat()
	assert.Equal(t, 0, s.Position(), "loop off: no wrap backwards")

	s.ToggleLoop()
	s.Retreat()
	assert.Equal(t, 2, s.Position(), "loop on: wrap to last")

	s.Retreat()
	assert.Equal(t, 1, s.Position())
}

func TestAdvanceRetreat_EmptyQueueNoOp(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.Advance()
	s.Retreat()

	assert.Equal(t, NoPosition, s.Position())
	assert.False(t, s.IsPlaying())
	assert.Empty(t, drain(s))
}

func TestToggleLoop_Involution(t *testing.T) {
	s := NewStore()
	defer s.Close()

	assert.False(t, s.IsLooping())
	assert.True(t, s.ToggleLoop())
	assert.False(t, s.ToggleLoop())
	assert.False(t, s.IsLooping())
}

func TestSetPlaying_EmitsOnlyOnChange(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.SetPlaying(true)
	s.SetPlaying(true)
	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, EventPlayingChanged, events[0].Type)
	assert.True(t, events[0].Playing)
}

func TestClearQueue_KeepsPlayingIntent(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.ReplaceAndPlay(threeTracks(), 1))
	removed := s.ClearQueue()

	assert.Len(t, removed, 3)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, NoPosition, s.Position())
	_, ok := s.Current()
	assert.False(t, ok)
	assert.True(t, s.IsPlaying(), "clearing the queue does not pause the stream")
}

func TestEpoch_BumpsOnSameTrackRebind(t *testing.T) {
	s := NewStore()
	defer s.Close()

	require.NoError(t, s.ReplaceAndPlay(threeTracks(), 1))
	first := s.Epoch()

	// Re-selecting the already-current track must still bump the epoch
	// so the engine restarts playback.
	s.PlayOrEnqueueAndPlay(track.Track{ID: "b"})
	assert.Greater(t, s.Epoch(), first)
}

// Position invariant: every reachable position is either NoPosition or a
// valid index into the queue.
func TestPositionInvariant(t *testing.T) {
	s := NewStore()
	defer s.Close()

	check := func() {
		p := s.Position()
		if p != NoPosition {
			assert.GreaterOrEqual(t, p, 0)
			assert.Less(t, p, s.Len())
		}
	}

	check()
	s.EnqueueOne(track.Track{ID: "a"})
	check()
	require.NoError(t, s.ReplaceAndPlay(threeTracks(), 2))
	check()
	s.Advance()
	check()
	s.ToggleLoop()
	s.Advance()
	check()
	s.Retreat()
	check()
	s.ClearQueue()
	check()
	s.Advance()
	check()
}
