// Package session records and replays the sequence of Render calls a
// pipeline received, as a YAML document. Recording is useful for
// reproducing an encoder bug offline; replay drives a pipeline from a
// recorded file instead of a live producer.
package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tenclass/sweet-encoder/internal/producer"
	"github.com/tenclass/sweet-encoder/internal/screen"
)

// Segment is the YAML-serializable form of a screen.IOSegment.
type Segment struct {
	Data []byte `yaml:"data"`
}

// Partial is the YAML-serializable form of a screen.Partial, plus the
// offset from session start at which it was recorded.
type Partial struct {
	OffsetMillis int64     `yaml:"offset_ms"`
	X            int       `yaml:"x"`
	Y            int       `yaml:"y"`
	Width        int       `yaml:"width"`
	Height       int       `yaml:"height"`
	Stride       int       `yaml:"stride"`
	Flip         bool      `yaml:"flip"`
	Segments     []Segment `yaml:"segments"`
}

// Recording is a full session: an identifier for correlating it with
// diagnostics logged during capture, the screen geometry it was
// captured against, and the ordered list of partials.
type Recording struct {
	ID       string            `yaml:"id"`
	Screen   screen.Descriptor `yaml:"screen"`
	Partials []Partial         `yaml:"partials"`
}

func toPartial(offset time.Duration, p screen.Partial) Partial {
	segs := make([]Segment, len(p.Segments))
	for i, s := range p.Segments {
		segs[i] = Segment{Data: append([]byte(nil), s.Data...)}
	}
	return Partial{
		OffsetMillis: offset.Milliseconds(),
		X:            p.X, Y: p.Y, Width: p.Width, Height: p.Height,
		Stride: p.Stride, Flip: p.Flip, Segments: segs,
	}
}

func (p Partial) toScreen() screen.Partial {
	segs := make([]screen.IOSegment, len(p.Segments))
	for i, s := range p.Segments {
		segs[i] = screen.IOSegment{Data: s.Data}
	}
	return screen.Partial{
		X: p.X, Y: p.Y, Width: p.Width, Height: p.Height,
		Stride: p.Stride, Flip: p.Flip, Segments: segs,
	}
}

// Recorder wraps a producer.Sink, mirroring every Render call into an
// in-memory Recording that can later be written to disk.
type Recorder struct {
	sink  producer.Sink
	desc  screen.Descriptor
	start time.Time

	mu  sync.Mutex
	rec Recording
}

// NewRecorder starts a recording session against desc, forwarding every
// Render call to sink unchanged.
func NewRecorder(sink producer.Sink, desc screen.Descriptor) *Recorder {
	return &Recorder{
		sink:  sink,
		desc:  desc,
		start: time.Now(),
		rec:   Recording{ID: uuid.New().String(), Screen: desc},
	}
}

// Render forwards to the wrapped sink and appends the call to the
// recording.
func (r *Recorder) Render(partials []screen.Partial) {
	r.mu.Lock()
	offset := time.Since(r.start)
	for _, p := range partials {
		r.rec.Partials = append(r.rec.Partials, toPartial(offset, p))
	}
	r.mu.Unlock()

	r.sink.Render(partials)
}

// Save writes the recording to path as YAML.
func (r *Recorder) Save(path string) error {
	r.mu.Lock()
	rec := r.rec
	r.mu.Unlock()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: failed to marshal recording: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("session: failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads a recording back from path.
func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: failed to read %s: %w", path, err)
	}
	var rec Recording
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("session: failed to parse %s: %w", path, err)
	}
	return &rec, nil
}

// Player replays a Recording into a Sink, preserving the original
// inter-partial timing.
type Player struct {
	rec *Recording
}

// NewPlayer wraps a loaded recording for replay.
func NewPlayer(rec *Recording) *Player {
	return &Player{rec: rec}
}

// Play blocks, delivering each recorded partial to sink at its original
// offset from session start. stop, if non-nil, ends playback early.
func (p *Player) Play(sink producer.Sink, stop <-chan struct{}) {
	start := time.Now()
	for _, rp := range p.rec.Partials {
		target := start.Add(time.Duration(rp.OffsetMillis) * time.Millisecond)
		if d := time.Until(target); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-stop:
				timer.Stop()
				return
			}
		}
		sink.Render([]screen.Partial{rp.toScreen()})
	}
}
