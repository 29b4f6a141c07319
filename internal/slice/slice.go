// Package slice holds the Encode Slice type and its FIFO queue. A slice is
// an aligned encode region plus its own converted YUV tile, created when a
// partial is accepted and consumed exactly once by the encoder worker.
package slice

import "github.com/tenclass/sweet-encoder/internal/picture"

// Slice is an aligned rectangle plus an owned planar YUV tile sized exactly
// to that rectangle.
type Slice struct {
	X, Y, Width, Height int
	Tile                *picture.YUV420
}

// New allocates a slice with a freshly-allocated YUV tile for the given
// aligned rectangle.
func New(x, y, width, height int) *Slice {
	return &Slice{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
		Tile:   picture.NewYUV420(width, height),
	}
}

// Queue is a FIFO of pending slices. It is not safe for concurrent use on
// its own; the pipeline guards it with its own lock.
type Queue struct {
	items []*Slice
}

// Push appends a slice, preserving call order.
func (q *Queue) Push(s *Slice) {
	q.items = append(q.items, s)
}

// Len reports the number of pending slices.
func (q *Queue) Len() int {
	return len(q.items)
}

// Peek returns the pending slices without removing them, so a caller can
// process them (e.g. convert pixels) before committing to Drain.
func (q *Queue) Peek() []*Slice {
	return q.items
}

// Drain removes and returns all pending slices as a contiguous batch, in
// the order they were pushed, leaving the queue empty.
func (q *Queue) Drain() []*Slice {
	if len(q.items) == 0 {
		return nil
	}
	batch := q.items
	q.items = nil
	return batch
}
