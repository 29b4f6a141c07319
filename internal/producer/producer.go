// Package producer defines the interface a display source implements to
// feed partials into a pipeline. The pipeline core has no dependency on
// any concrete producer; examples/x11demo and examples/syntheticproducer
// are the two reference implementations.
package producer

import "github.com/tenclass/sweet-encoder/internal/screen"

// Sink is the subset of pipeline.Pipeline a producer needs: enough to
// push dirty-region updates without pulling in the pipeline package's
// codec/config dependencies.
type Sink interface {
	Render(partials []screen.Partial)
}

// Producer generates a stream of screen.Partial updates and pushes them
// into a Sink until Stop is called.
type Producer interface {
	// Start begins producing partials into sink. Returns once the
	// producer's background work is running; Stop ends it.
	Start(sink Sink) error
	Stop() error
}
