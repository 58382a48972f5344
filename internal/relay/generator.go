package relay

import (
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Relay turns an upstream Source into client lines for one turn.
//
// Lines are produced on demand: the next upstream payload is read only after the
// consumer accepted the previous line. The source is closed on every exit path.
type Relay struct {
	src     Source
	corr    Correlation
	logger  *slog.Logger
	observe func(Kind)

	started   atomic.Bool
	closeOnce sync.Once
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger used for read failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

// WithObserver registers a callback invoked with the kind of every delta read.
func WithObserver(fn func(Kind)) Option {
	return func(r *Relay) { r.observe = fn }
}

// NewRelay creates a relay over src stamped with corr.
func NewRelay(src Source, corr Correlation, opts ...Option) *Relay {
	r := &Relay{
		src:     src,
		corr:    corr,
		logger:  slog.Default(),
		observe: func(Kind) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Envelopes returns the line sequence. It can be ranged once; later ranges yield nothing.
//
// Error payloads are forwarded and the sequence continues. A read failure yields one
// terminal error line and ends the sequence.
func (r *Relay) Envelopes() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if !r.started.CompareAndSwap(false, true) {
			return
		}
		defer r.Close()

		for {
			delta, err := r.src.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				r.logger.Warn("upstream stream failed", "turn_id", r.corr.ID, "error", err)
				r.observe(KindError)
				yield(ErrorLine(err.Error()))
				return
			}

			r.observe(delta.Kind)
			if !delta.Visible() {
				continue
			}

			line, err := delta.Encode(r.corr)
			if err != nil {
				r.logger.Error("encode envelope", "turn_id", r.corr.ID, "kind", delta.Kind.String(), "error", err)
				yield(ErrorLine(err.Error()))
				return
			}
			if !yield(line) {
				return
			}
		}
	}
}

// Close releases the upstream source. Safe to call more than once and without ranging.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		if err := r.src.Close(); err != nil {
			r.logger.Debug("close upstream source", "turn_id", r.corr.ID, "error", err)
		}
	})
}
