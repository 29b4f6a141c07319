package pipeline_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	codecpkg "github.com/tenclass/sweet-encoder/internal/codec"
	"github.com/tenclass/sweet-encoder/internal/picture"
	"github.com/tenclass/sweet-encoder/internal/pipeline"
	"github.com/tenclass/sweet-encoder/internal/screen"
)

// frameTypeAndPTS records one submission to the fake codec.
type frameTypeAndPTS struct {
	pts       int64
	frameType picture.FrameType
}

// fakeCodecAdapter stands in for a real GStreamer pipeline in tests: it
// records every Working Picture handed to it and echoes back one synthetic
// NAL sample per tick, so the pipeline worker's convert/draw/encode/deliver
// cycle can be exercised without a real encoder.
type fakeCodecAdapter struct {
	mu     sync.Mutex
	ticks  []frameTypeAndPTS
	seq    int64
	closed bool
}

var _ codecpkg.Adapter = (*fakeCodecAdapter)(nil)

func (f *fakeCodecAdapter) Encode(pic *picture.Working) (*codecpkg.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, frameTypeAndPTS{pts: pic.PTS, frameType: pic.NextFrameType})
	f.seq++
	return &codecpkg.Sample{NAL: []byte{0, 0, 0, 1, byte(f.seq)}, Seq: f.seq}, nil
}

func (f *fakeCodecAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeCodecAdapter) snapshot() []frameTypeAndPTS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frameTypeAndPTS(nil), f.ticks...)
}

func (f *fakeCodecAdapter) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = nil
}

func newTestPipeline(t *testing.T, desc screen.Descriptor) (*pipeline.Pipeline, *fakeCodecAdapter) {
	t.Helper()
	codec := &fakeCodecAdapter{}
	p, err := pipeline.New(desc, codec, zerolog.Nop())
	if err != nil {
		t.Fatalf("pipeline.New() failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, codec
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met within timeout")
	}
}

func testDescriptor() screen.Descriptor {
	return screen.Descriptor{Width: 32, Height: 16, Bpp: 32, Stride: 32 * 4}
}

func TestPipelineStartProducesFullScreenKeyframe(t *testing.T) {
	p, codec := newTestPipeline(t, testDescriptor())

	var got []byte
	var mu sync.Mutex
	p.Start(func(nal []byte) {
		mu.Lock()
		got = append([]byte(nil), nal...)
		mu.Unlock()
	})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	})

	ticks := codec.snapshot()
	if len(ticks) == 0 {
		t.Fatal("codec received no submissions")
	}
	if ticks[0].frameType != picture.Keyframe {
		t.Fatalf("first submitted frame type = %v, want Keyframe", ticks[0].frameType)
	}
}

func TestPipelineRenderQueuesAlignedSlice(t *testing.T) {
	desc := testDescriptor()
	p, codec := newTestPipeline(t, desc)

	p.Start(func(nal []byte) {})
	waitFor(t, time.Second, func() bool { return len(codec.snapshot()) > 0 })

	before := len(codec.snapshot())

	p.Render([]screen.Partial{{
		X: 1, Y: 1, Width: 2, Height: 2, Stride: 2 * desc.BytesPerPixel(),
		Segments: []screen.IOSegment{{Data: make([]byte, 2*2*desc.BytesPerPixel())}},
	}})

	waitFor(t, time.Second, func() bool { return len(codec.snapshot()) > before })
}

func TestPipelineRenderEmptyIsNoop(t *testing.T) {
	p, codec := newTestPipeline(t, testDescriptor())

	p.Render(nil)
	time.Sleep(20 * time.Millisecond)

	if len(codec.snapshot()) != 0 {
		t.Fatalf("codec received %d submissions before Start(), want 0", len(codec.snapshot()))
	}
}

func TestPipelineForceKeyframeWithinIdleInterval(t *testing.T) {
	p, codec := newTestPipeline(t, testDescriptor())

	p.Start(func(nal []byte) {})
	waitFor(t, time.Second, func() bool { return len(codec.snapshot()) > 0 })

	codec.reset()
	p.ForceKeyframe()

	waitFor(t, 500*time.Millisecond, func() bool {
		ticks := codec.snapshot()
		for _, tk := range ticks {
			if tk.frameType == picture.Keyframe {
				return true
			}
		}
		return false
	})
}

func TestPipelineStopSuppressesCallback(t *testing.T) {
	p, codec := newTestPipeline(t, testDescriptor())

	var calls int
	var mu sync.Mutex
	p.Start(func(nal []byte) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	waitFor(t, time.Second, func() bool { return len(codec.snapshot()) > 0 })

	p.Stop()
	mu.Lock()
	afterStop := calls
	mu.Unlock()

	// Give the worker time to keep ticking on the idle timer; the callback
	// must not fire again since Stop() cleared it and the queue is drained.
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != afterStop {
		t.Fatalf("callback fired %d more times after Stop()", calls-afterStop)
	}
}

func TestPipelineCloseIsIdempotent(t *testing.T) {
	p, _ := newTestPipeline(t, testDescriptor())
	if err := p.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() failed: %v", err)
	}
}

func TestPipelineStatsReflectsQueueDepth(t *testing.T) {
	desc := testDescriptor()
	p, _ := newTestPipeline(t, desc)

	// Before Start, Render still blits but never queues (since !started).
	p.Render([]screen.Partial{{
		X: 0, Y: 0, Width: 2, Height: 2, Stride: 2 * desc.BytesPerPixel(),
		Segments: []screen.IOSegment{{Data: make([]byte, 2*2*desc.BytesPerPixel())}},
	}})

	stats := p.Stats()
	if stats.QueueDepth != 0 {
		t.Fatalf("QueueDepth = %d before Start(), want 0", stats.QueueDepth)
	}
}
