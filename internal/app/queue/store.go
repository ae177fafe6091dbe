// Package queue provides the playback queue store: the single source of
// truth for what is queued, what is current, whether playback is intended
// and whether the queue loops.
package queue

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/otobox/otobox/internal/domain/track"
)

// Errors
var (
	ErrEmptyList       = errors.New("track list is empty")
	ErrIndexOutOfRange = errors.New("index out of range")
)

// NoPosition marks "nothing is bound".
const NoPosition = -1

// Store owns the ordered queue, the current position, and the playing
// and loop flags. All mutation funnels through its operations; other
// components observe it through Events and the read accessors.
//
// The playing flag is intent, not actual output state. The engine
// binding reconciles the two asynchronously.
type Store struct {
	mu sync.RWMutex

	queue    []track.Track
	position int
	playing  bool
	looping  bool
	epoch    uint64

	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStore creates an empty queue store.
func NewStore() *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		queue:    make([]track.Track, 0),
		position: NoPosition,
		eventCh:  make(chan Event, 32),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events returns the event channel.
func (s *Store) Events() <-chan Event {
	return s.eventCh
}

// Close releases the store. No events are delivered afterwards.
func (s *Store) Close() {
	s.cancel()
	close(s.eventCh)
}

// ReplaceAndPlay replaces the whole queue with list and binds the entry
// at index, with playing intent on. Used when the user explicitly plays
// a list from a given entry point.
func (s *Store) ReplaceAndPlay(list []track.Track, index int) error {
	if len(list) == 0 {
		return ErrEmptyList
	}
	if index < 0 || index >= len(list) {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d, list length %d", index, len(list))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = make([]track.Track, len(list))
	copy(s.queue, list)
	s.bindLocked(index)
	return nil
}

// PlayAllReplacing replaces the queue with tracks and plays from the top.
func (s *Store) PlayAllReplacing(tracks []track.Track) error {
	return s.ReplaceAndPlay(tracks, 0)
}

// EnqueueOne appends a track unless one with the same id is already
// queued. Returns true if the track was appended.
func (s *Store) EnqueueOne(t track.Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfLocked(t.ID) >= 0 {
		return false
	}
	s.queue = append(s.queue, t)
	s.sendEventLocked(s.eventLocked(EventQueueChanged))
	return true
}

// EnqueueMany appends the tracks not already queued, preserving their
// relative order. Returns the number of tracks appended.
func (s *Store) EnqueueMany(tracks []track.Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	appended := 0
	for _, t := range tracks {
		if s.indexOfLocked(t.ID) >= 0 {
			continue
		}
		s.queue = append(s.queue, t)
		appended++
	}
	if appended > 0 {
		s.sendEventLocked(s.eventLocked(EventQueueChanged))
	}
	return appended
}

// PlayOrEnqueueAndPlay binds the queue's existing entry when a track
// with the same id is already queued (the queued entry is the canonical
// identity, not the argument), otherwise appends the track and binds it.
// Either way the playing intent is switched on. This is the operation
// behind "tap a track anywhere in the app".
func (s *Store) PlayOrEnqueueAndPlay(t track.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOfLocked(t.ID); i >= 0 {
		s.bindLocked(i)
		return
	}
	s.queue = append(s.queue, t)
	s.bindLocked(len(s.queue) - 1)
}

// Advance moves to the next queue entry. At the end of the queue it
// wraps to the first entry when looping, and is a no-op otherwise:
// position, current track and playing intent all stay as they are.
func (s *Store) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return
	}
	next := s.position + 1
	if next >= len(s.queue) {
		if !s.looping {
			return
		}
		next = 0
	}
	s.bindLocked(next)
}

// Retreat moves to the previous queue entry, wrapping to the last entry
// when looping, no-op otherwise.
func (s *Store) Retreat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return
	}
	prev := s.position - 1
	if prev < 0 {
		if !s.looping {
			return
		}
		prev = len(s.queue) - 1
	}
	s.bindLocked(prev)
}

// ToggleLoop flips the loop flag and returns the new value. Current
// playback is not affected.
func (s *Store) ToggleLoop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.looping = !s.looping
	s.sendEventLocked(s.eventLocked(EventLoopChanged))
	return s.looping
}

// SetPlaying sets the playing intent. Used both by explicit user
// pause/resume and to mirror actual output state back into the store.
// Emits an event only when the value actually changes.
func (s *Store) SetPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing == playing {
		return
	}
	s.playing = playing
	s.sendEventLocked(s.eventLocked(EventPlayingChanged))
}

// ClearQueue empties the queue and unbinds the position. It deliberately
// does not touch the playing intent: whether clearing also stops the
// current stream is the caller's decision, not a queue invariant.
// Returns the removed tracks.
func (s *Store) ClearQueue() []track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.queue
	s.queue = make([]track.Track, 0)
	s.position = NoPosition
	s.sendEventLocked(s.eventLocked(EventQueueChanged))
	return removed
}

// Current returns the currently bound track.
func (s *Store) Current() (track.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.position == NoPosition {
		return track.Track{}, false
	}
	return s.queue[s.position], true
}

// Position returns the current position, or NoPosition.
func (s *Store) Position() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// IsPlaying returns the playing intent.
func (s *Store) IsPlaying() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.playing
}

// IsLooping returns the loop flag.
func (s *Store) IsLooping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.looping
}

// Len returns the number of queued tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}

// Contains reports whether a track with the given id is queued.
func (s *Store) Contains(trackID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOfLocked(trackID) >= 0
}

// Snapshot returns a copy of the queued tracks.
func (s *Store) Snapshot() []track.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]track.Track, len(s.queue))
	copy(out, s.queue)
	return out
}

// Epoch returns the current binding generation.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// bindLocked makes the entry at index current, switches the playing
// intent on, bumps the binding epoch and emits EventTrackChanged.
// Must be called with the lock held and a valid index.
func (s *Store) bindLocked(index int) {
	s.position = index
	s.playing = true
	s.epoch++
	s.sendEventLocked(s.eventLocked(EventTrackChanged))
}

// indexOfLocked returns the queue index of the track with the given id,
// or -1. Must be called with the lock held.
func (s *Store) indexOfLocked(trackID string) int {
	for i := range s.queue {
		if s.queue[i].Is(trackID) {
			return i
		}
	}
	return -1
}

// eventLocked builds an event reflecting the current state.
// Must be called with the lock held.
func (s *Store) eventLocked(typ EventType) Event {
	e := Event{
		Type:    typ,
		Index:   s.position,
		Epoch:   s.epoch,
		Playing: s.playing,
		Looping: s.looping,
	}
	if s.position != NoPosition {
		t := s.queue[s.position]
		e.Track = &t
	}
	return e
}

// sendEventLocked sends an event without blocking.
// Must be called with the lock held.
func (s *Store) sendEventLocked(e Event) {
	select {
	case s.eventCh <- e:
	case <-s.ctx.Done():
	default:
		zlog.Debug().Msgf("queue: event channel full, dropping %s", e.Type)
	}
}
