// Package engine provides a headless media output that consumes the
// resolved stream over HTTP. It keeps the authorized stream flowing and
// reports playback progress; actual audio rendering is left to the
// attached frontend.
package engine

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/otobox/otobox/internal/app/playback"
)

// Config represents output configuration.
type Config struct {
	// BytesPerSec paces the stream consumption so progress roughly
	// follows real time. Zero means 160 KiB/s.
	BytesPerSec int
}

// HTTPOutput streams the attached source URL over HTTP on a background
// reader loop. Started and Paused are reported when commanded; Ended
// and Error are reported by the reader loop.
type HTTPOutput struct {
	client      *http.Client
	bytesPerSec int
	events      chan playback.OutputEvent

	mu      sync.Mutex
	cancel  context.CancelFunc
	playing bool
	pos     time.Duration
}

// NewHTTPOutput creates a headless HTTP output.
func NewHTTPOutput(cfg Config) *HTTPOutput {
	bps := cfg.BytesPerSec
	if bps <= 0 {
		bps = 160 << 10
	}
	return &HTTPOutput{
		client:      &http.Client{},
		bytesPerSec: bps,
		events:      make(chan playback.OutputEvent, 16),
	}
}

// Load attaches the source URL and starts the reader loop.
func (o *HTTPOutput) Load(ctx context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return errors.New("a source is already attached")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build stream request")
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to open stream")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return errors.Newf("stream rejected: status=%d", resp.StatusCode)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.pos = 0
	o.playing = false

	go o.run(streamCtx, resp.Body)
	return nil
}

// run consumes the stream body, advancing the position clock while the
// output is playing. The pacing keeps progress close to real time.
func (o *HTTPOutput) run(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	buf := make([]byte, 32<<10)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		o.mu.Lock()
		playing := o.playing
		o.mu.Unlock()
		if !playing {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		n, err := body.Read(buf)
		if n > 0 {
			step := time.Duration(float64(n) / float64(o.bytesPerSec) * float64(time.Second))
			o.mu.Lock()
			o.pos += step
			o.mu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-time.After(step):
			}
		}
		if err == io.EOF {
			o.send(playback.OutputEvent{Type: playback.OutputEnded})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.send(playback.OutputEvent{Type: playback.OutputError, Err: err})
			return
		}
	}
}

// Play starts or resumes consumption.
func (o *HTTPOutput) Play(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel == nil {
		return errors.New("no source attached")
	}
	if !o.playing {
		o.playing = true
		o.send(playback.OutputEvent{Type: playback.OutputStarted})
	}
	return nil
}

// Pause suspends consumption, keeping the source attached.
func (o *HTTPOutput) Pause(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playing {
		o.playing = false
		o.send(playback.OutputEvent{Type: playback.OutputPaused})
	}
	return nil
}

// Stop halts consumption and detaches the source.
func (o *HTTPOutput) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.playing = false
	o.pos = 0
	return nil
}

// Seek moves the position clock. The underlying HTTP stream is not
// repositioned; the clock is what recovery resumption needs.
func (o *HTTPOutput) Seek(ctx context.Context, pos time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pos = pos
	return nil
}

// Position returns the elapsed playback position.
func (o *HTTPOutput) Position(ctx context.Context) (time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pos, nil
}

// Events returns the output's event channel.
func (o *HTTPOutput) Events() <-chan playback.OutputEvent {
	return o.events
}

func (o *HTTPOutput) send(e playback.OutputEvent) {
	select {
	case o.events <- e:
	default:
		zlog.Debug().Msgf("engine: event dropped: type=%s", e.Type)
	}
}
