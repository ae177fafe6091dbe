package playback

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/otobox/otobox/internal/app/queue"
	"github.com/otobox/otobox/internal/domain/track"
	"github.com/otobox/otobox/internal/infra/stream"
)

// Resolver exchanges a track id for an authorized stream source.
type Resolver interface {
	Resolve(ctx context.Context, trackID string) (stream.Source, error)
}

// resolveResult is delivered back into the event loop when an
// asynchronous resolve attempt completes.
type resolveResult struct {
	gen      uint64 // Binding generation the attempt was issued for
	src      stream.Source
	err      error
	recovery bool          // True for the one-shot error recovery path
	resume   time.Duration // Position to seek to after a recovery
}

// Binding reacts to queue store events by resolving the current track
// and driving the media output, and reacts to output events by advancing
// the queue or recovering the stream.
//
// All transitions happen on a single event loop goroutine; resolve
// network round trips run asynchronously and deliver their result back
// into the loop tagged with the generation they were issued for. A
// result whose generation no longer matches is discarded, which is how
// superseded track changes are cancelled.
type Binding struct {
	store    *queue.Store
	resolver Resolver
	output   Output

	mu         sync.RWMutex
	state      State
	current    *track.Track
	lastErr    error
	gen        uint64
	recovering bool

	resolveCh chan resolveResult

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBinding creates an engine binding. Call Start to begin reacting.
func NewBinding(store *queue.Store, resolver Resolver, output Output) *Binding {
	ctx, cancel := context.WithCancel(context.Background())
	return &Binding{
		store:     store,
		resolver:  resolver,
		output:    output,
		state:     StateIdle,
		resolveCh: make(chan resolveResult, 8),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start launches the event loop.
func (b *Binding) Start() {
	go b.run()
}

// Close stops the event loop and halts the output.
func (b *Binding) Close() {
	b.cancel()
	<-b.done
	_ = b.output.Stop(context.Background())
}

// State returns the binding state.
func (b *Binding) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Current returns the track bound to the output, if any.
func (b *Binding) Current() (track.Track, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return track.Track{}, false
	}
	return *b.current, true
}

// LastError returns the most recent unrecovered error, if any.
// It is cleared whenever a new track is bound.
func (b *Binding) LastError() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

func (b *Binding) run() {
	defer close(b.done)

	for {
		select {
		case <-b.ctx.Done():
			return
		case e, ok := <-b.store.Events():
			if !ok {
				return
			}
			b.handleQueueEvent(e)
		case oe, ok := <-b.output.Events():
			if !ok {
				return
			}
			b.handleOutputEvent(oe)
		case rr := <-b.resolveCh:
			b.handleResolved(rr)
		}
	}
}

func (b *Binding) handleQueueEvent(e queue.Event) {
	switch e.Type {
	case queue.EventTrackChanged:
		if e.Track == nil {
			return
		}
		b.beginLoad(*e.Track, e.Epoch)

	case queue.EventPlayingChanged:
		b.applyIntent(e.Playing)

	case queue.EventLoopChanged, queue.EventQueueChanged:
		// Neither affects the bound output.
	}
}

// beginLoad halts and detaches the previous source, then kicks off an
// asynchronous resolve for the newly bound track. Halting first is what
// guarantees at most one active audio source at a time.
func (b *Binding) beginLoad(t track.Track, gen uint64) {
	if err := b.output.Stop(b.ctx); err != nil {
		zlog.Warn().Err(err).Msg("playback: failed to halt output before track change")
	}

	b.mu.Lock()
	b.state = StateLoading
	b.current = &t
	b.lastErr = nil
	b.gen = gen
	b.recovering = false
	b.mu.Unlock()

	zlog.Debug().Msgf("playback: loading track=%s gen=%d", t.ID, gen)
	b.startResolve(t.ID, gen, false, 0)
}

// startResolve runs the resolver off-loop and reports back tagged with gen.
func (b *Binding) startResolve(trackID string, gen uint64, recovery bool, resume time.Duration) {
	go func() {
		src, err := b.resolver.Resolve(b.ctx, trackID)
		select {
		case b.resolveCh <- resolveResult{gen: gen, src: src, err: err, recovery: recovery, resume: resume}:
		case <-b.ctx.Done():
		}
	}()
}

func (b *Binding) handleResolved(rr resolveResult) {
	b.mu.RLock()
	latest := b.gen
	current := b.current
	b.mu.RUnlock()

	// A completion for a superseded track is not an error; discard it
	// so it can never attach audio for a track that is no longer current.
	if rr.gen != latest {
		zlog.Debug().Msgf("playback: discarding stale resolve gen=%d latest=%d", rr.gen, latest)
		return
	}

	if rr.err != nil {
		b.handleResolveFailure(rr, current)
		return
	}

	if err := b.attach(rr); err != nil {
		b.handleResolveFailure(resolveResult{gen: rr.gen, err: err, recovery: rr.recovery, resume: rr.resume}, current)
	}
}

// attach loads the resolved source into the output, seeks back to the
// recovery position if there is one, and reconciles with the playing intent.
func (b *Binding) attach(rr resolveResult) error {
	if err := b.output.Load(b.ctx, rr.src.URL); err != nil {
		return err
	}
	if rr.resume > 0 {
		if err := b.output.Seek(b.ctx, rr.resume); err != nil {
			zlog.Warn().Err(err).Msgf("playback: failed to seek to resume point %v", rr.resume)
		}
	}

	playing := b.store.IsPlaying()
	if playing {
		if err := b.output.Play(b.ctx); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.recovering = false
	if playing {
		b.state = StatePlaying
	} else {
		b.state = StatePaused
	}
	b.mu.Unlock()

	zlog.Debug().Msgf("playback: attached track=%s recovery=%t resume=%v", rr.src.TrackID, rr.recovery, rr.resume)
	return nil
}

// handleResolveFailure implements the one-shot recovery policy: a failed
// initial load gets exactly one recovery resolve; a failed recovery
// gives up, forces the playing intent off and leaves the track selected
// so the user can retry manually.
func (b *Binding) handleResolveFailure(rr resolveResult, current *track.Track) {
	if !rr.recovery && current != nil {
		zlog.Warn().Err(rr.err).Msgf("playback: resolve failed for track=%s, attempting recovery", current.ID)
		b.mu.Lock()
		b.state = StateErroring
		b.recovering = true
		b.mu.Unlock()
		b.startResolve(current.ID, rr.gen, true, rr.resume)
		return
	}

	zlog.Error().Err(rr.err).Msg("playback: recovery failed, giving up")
	b.mu.Lock()
	b.state = StateIdle
	b.lastErr = rr.err
	b.recovering = false
	b.mu.Unlock()
	b.store.SetPlaying(false)
}

func (b *Binding) handleOutputEvent(oe OutputEvent) {
	switch oe.Type {
	case OutputStarted:
		b.mu.Lock()
		b.state = StatePlaying
		b.mu.Unlock()
		// A play signal originating at the output must flip the intent.
		b.store.SetPlaying(true)

	case OutputPaused:
		b.mu.Lock()
		// Keep Erroring: a recovery detaches the source, which some
		// outputs report as a pause.
		if b.state == StatePlaying {
			b.state = StatePaused
		}
		b.mu.Unlock()
		if b.State() == StatePaused {
			b.store.SetPlaying(false)
		}

	case OutputEnded:
		b.handleEnded()

	case OutputError:
		b.handleStreamError(oe.Err)
	}
}

// handleEnded reacts to a natural end of stream: advance (the store's
// boundary rule covers both the loop wrap and the single-track restart),
// or stop intent at the end of the queue with loop off.
func (b *Binding) handleEnded() {
	if b.store.IsLooping() {
		b.store.Advance()
		return
	}

	atEnd := b.store.Position() >= b.store.Len()-1
	if atEnd {
		// End of queue, loop off: playback stops here. The track stays
		// selected; the intent flag goes off so the UI reflects it.
		b.mu.Lock()
		b.state = StatePaused
		b.mu.Unlock()
		b.store.SetPlaying(false)
		return
	}
	b.store.Advance()
}

// handleStreamError runs the one-shot mid-stream recovery: capture the
// elapsed position, detach, re-resolve the currently bound track and, on
// success, seek back and resume. A second error while a recovery is
// already pending is ignored.
func (b *Binding) handleStreamError(cause error) {
	b.mu.RLock()
	recovering := b.recovering
	current := b.current
	gen := b.gen
	b.mu.RUnlock()

	if recovering {
		zlog.Debug().Msg("playback: stream error while recovery pending, ignoring")
		return
	}
	if current == nil {
		return
	}

	zlog.Warn().Err(cause).Msgf("playback: stream error on track=%s, refreshing authorization", current.ID)

	resume, err := b.output.Position(b.ctx)
	if err != nil {
		resume = 0
	}
	if err := b.output.Stop(b.ctx); err != nil {
		zlog.Warn().Err(err).Msg("playback: failed to detach errored output")
	}

	b.mu.Lock()
	b.state = StateErroring
	b.recovering = true
	b.mu.Unlock()

	b.startResolve(current.ID, gen, true, resume)
}

func (b *Binding) applyIntent(playing bool) {
	switch b.State() {
	case StatePaused:
		if playing {
			if err := b.output.Play(b.ctx); err != nil {
				zlog.Warn().Err(err).Msg("playback: failed to resume output")
				return
			}
			b.mu.Lock()
			b.state = StatePlaying
			b.mu.Unlock()
		}
	case StatePlaying:
		if !playing {
			if err := b.output.Pause(b.ctx); err != nil {
				zlog.Warn().Err(err).Msg("playback: failed to pause output")
				return
			}
			b.mu.Lock()
			b.state = StatePaused
			b.mu.Unlock()
		}
	default:
		// Idle/Loading/Erroring: the intent is reconciled when the
		// pending attach or recovery completes.
	}
}
