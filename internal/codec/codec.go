// Package codec adapts the pipeline's Working Picture to an external H.264
// encoder. The contract (§4.4 of the design) is fixed: constant rate
// factor, byte-stream Annex B framing with headers repeated per keyframe,
// a 7200-frame GOP with scene-cut detection disabled, and picture-type
// hints supplied per submission rather than left to encoder heuristics.
package codec

import "github.com/tenclass/sweet-encoder/internal/picture"

// Sample is one encoded frame's worth of Annex-B NAL units, concatenated.
type Sample struct {
	NAL []byte
	Seq int64
}

// Adapter is the contract the pipeline worker drives once per tick. A nil
// Sample with a nil error means "no output this tick" — the codec
// transient case in the error taxonomy, not a failure.
type Adapter interface {
	// Encode submits pic (already stamped with PTS and frame type by the
	// caller) and returns the resulting NAL sample, or (nil, nil) if the
	// codec produced no output this tick.
	Encode(pic *picture.Working) (*Sample, error)

	// Close releases the encoder handle. Idempotent.
	Close() error
}
