// Package pipeline wires together the screen buffer, the encode slice
// queue, the encoder worker and the codec adapter into the public
// producer/consumer surface described by the design: New, Start, Stop,
// Render, ForceKeyframe, Close.
package pipeline

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tenclass/sweet-encoder/internal/codec"
	"github.com/tenclass/sweet-encoder/internal/colorconvert"
	"github.com/tenclass/sweet-encoder/internal/picture"
	"github.com/tenclass/sweet-encoder/internal/screen"
	"github.com/tenclass/sweet-encoder/internal/slice"
)

// idleInterval bounds the maximum latency between a ForceKeyframe request
// and a generated frame when no updates arrive, and is the minimum cadence
// at which the codec is pumped to flush any internal buffering.
const idleInterval = 500 * time.Millisecond

// Callback receives one encoded frame's worth of Annex-B NAL units,
// concatenated. The slice is only valid for the duration of the call.
type Callback func(nal []byte)

// Stats is a point-in-time snapshot of pipeline activity, exposed for
// diagnostics (see internal/statusapi). It is not part of the core
// producer/consumer contract.
type Stats struct {
	FramesEncoded  uint64
	KeyframesSent  uint64
	DroppedTicks   uint64 // ticks where the codec produced no output (transient)
	EncoderErrors  uint64 // ticks where the codec returned a real error
	QueueDepth     int
	LastFrameBytes int
	LastFrameAt    time.Time
	LastKeyframeAt time.Time
}

// Pipeline is the display encoder core: one Screen Buffer, one slice
// queue, one dedicated worker goroutine and one codec adapter.
type Pipeline struct {
	desc  screen.Descriptor
	buf   *screen.Buffer
	codec codec.Adapter
	work  *picture.Working
	log   zerolog.Logger

	// mu guards everything below, matching the "pipeline lock" in the
	// design: the screen buffer, the slice queue, started, callback,
	// forceKeyframe and destroyed.
	mu            sync.Mutex
	queue         slice.Queue
	started       bool
	forceKeyframe bool
	destroyed     bool
	callback      Callback
	stats         Stats

	// wake is the capacity-1 substitute for the source's condition
	// variable: a non-blocking send on a full channel coalesces with a
	// pending signal, exactly as a condvar's broadcast would.
	wake chan struct{}
	done chan struct{}
}

// New allocates the Screen Buffer and Working Picture, and spawns the
// worker goroutine. codecAdapter must already be constructed and matched
// to desc's dimensions; New takes ownership and will Close it.
func New(desc screen.Descriptor, codecAdapter codec.Adapter, log zerolog.Logger) (*Pipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		desc:  desc,
		buf:   screen.New(desc),
		codec: codecAdapter,
		work:  picture.NewWorking(desc.Width, desc.Height),
		log:   log,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	go p.run()
	return p, nil
}

// Start installs the output callback, marks the pipeline started, forces
// a keyframe, and enqueues a single full-screen slice so the very next
// encoder tick produces a keyframe covering the whole screen.
func (p *Pipeline) Start(cb Callback) {
	p.mu.Lock()
	p.started = true
	p.forceKeyframe = true
	p.callback = cb
	full := p.buf.AlignForEncode(screen.Rect{X: 0, Y: 0, Width: p.desc.Width, Height: p.desc.Height})
	p.queue.Push(slice.New(full.X, full.Y, full.Width, full.Height))
	p.mu.Unlock()

	p.wakeWorker()
}

// Stop clears the started flag and the output callback. Queued slices
// remain valid for a future Start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.started = false
	p.callback = nil
	p.mu.Unlock()
}

// Render blits each partial into the Screen Buffer in order and, if the
// pipeline is started, enqueues an aligned Encode Slice for it. An empty
// partial list is a no-op: it returns before taking the lock, with no
// wakeup and no buffer mutation.
func (p *Pipeline) Render(partials []screen.Partial) {
	if len(partials) == 0 {
		return
	}

	p.mu.Lock()
	queued := false
	for _, part := range partials {
		p.buf.Blit(part)

		if p.started {
			r := p.buf.AlignForEncode(screen.Rect{X: part.X, Y: part.Y, Width: part.Width, Height: part.Height})
			p.queue.Push(slice.New(r.X, r.Y, r.Width, r.Height))
			queued = true
		}
	}
	p.mu.Unlock()

	if queued {
		p.wakeWorker()
	}
}

// ForceKeyframe requests that the next submitted picture be a keyframe and
// wakes the worker so the request is honored within idleInterval even if
// no new partials arrive.
func (p *Pipeline) ForceKeyframe() {
	p.mu.Lock()
	p.forceKeyframe = true
	p.mu.Unlock()

	p.wakeWorker()
}

// Close marks the pipeline destroyed, wakes and joins the worker, then
// releases the codec. Safe to call more than once.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.mu.Unlock()

	p.wakeWorker()
	<-p.done

	return p.codec.Close()
}

// Stats returns a snapshot of pipeline counters for diagnostics.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.QueueDepth = p.queue.Len()
	return s
}

func (p *Pipeline) wakeWorker() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// run is the encoder worker's loop, translating §4.3 directly: wait for a
// wakeup or the idle timeout, drain and convert any pending slices under
// the lock, stitch them into the Working Picture outside the lock, then
// always attempt one encode tick and deliver its output under the lock.
func (p *Pipeline) run() {
	defer close(p.done)

	for {
		select {
		case <-p.wake:
		case <-time.After(idleInterval):
		}

		p.mu.Lock()
		if p.destroyed {
			p.mu.Unlock()
			return
		}
		if !p.started {
			p.mu.Unlock()
			continue
		}

		var batch []*slice.Slice
		if p.queue.Len() > 0 {
			start := time.Now()
			for _, s := range p.queuedSlices() {
				p.convertSlice(s)
			}
			p.log.Debug().Dur("elapsed", time.Since(start)).Msg("converted pending slices")
			batch = p.queue.Drain()
		}
		p.mu.Unlock()

		if batch != nil {
			p.drawSlices(batch)
		}

		p.encodeTick()
	}
}

// queuedSlices exposes the queue's pending slices without draining them,
// so convertSlice can run while the lock (and therefore exclusive access
// to the Screen Buffer) is still held.
func (p *Pipeline) queuedSlices() []*slice.Slice {
	return p.queue.Peek()
}

// convertSlice reads a slice's sub-rectangle out of the Screen Buffer and
// converts it into the slice's own YUV tile. Must be called with the lock
// held: the Screen Buffer must not change while its bytes are being read.
func (p *Pipeline) convertSlice(s *slice.Slice) {
	data, stride := p.buf.SubRect(screen.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height})
	if err := colorconvert.ToI420(p.desc.Bpp, data, stride, s.Tile); err != nil {
		panic(err)
	}
}

// drawSlices stitches each slice's tile into the Working Picture. Runs
// outside the lock: it only touches worker-owned state.
func (p *Pipeline) drawSlices(batch []*slice.Slice) {
	for _, s := range batch {
		p.work.DrawSlice(s.X, s.Y, s.Width, s.Height, s.Tile)
	}
}

// encodeTick advances the Working Picture's PTS, resolves and consumes any
// pending forceKeyframe request, submits the picture to the codec, and
// delivers the resulting sample to the installed callback under the lock.
func (p *Pipeline) encodeTick() {
	p.mu.Lock()
	fk := p.forceKeyframe
	p.forceKeyframe = false
	p.mu.Unlock()

	p.work.Tick(fk)

	sample, err := p.codec.Encode(p.work)
	if err != nil {
		p.log.Error().Err(err).Msg("codec encode failed")
		p.mu.Lock()
		p.stats.EncoderErrors++
		p.mu.Unlock()
		return
	}
	if sample == nil {
		p.mu.Lock()
		p.stats.DroppedTicks++
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.stats.FramesEncoded++
	p.stats.LastFrameBytes = len(sample.NAL)
	p.stats.LastFrameAt = time.Now()
	if fk {
		p.stats.KeyframesSent++
		p.stats.LastKeyframeAt = time.Now()
	}
	if p.callback != nil {
		p.callback(sample.NAL)
	}
	p.mu.Unlock()
}
