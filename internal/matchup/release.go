package matchup

import (
	"errors"
	"fmt"
)

// releaser collects teardown steps for transient resources (sources,
// encoders, scratch files) and runs them in reverse acquisition order. It is
// run from a defer so every exit path releases, including panics and
// cancellation.
type releaser struct {
	steps []releaseStep
}

type releaseStep struct {
	name string
	fn   func() error
}

func (r *releaser) add(name string, fn func() error) {
	r.steps = append(r.steps, releaseStep{name: name, fn: fn})
}

// release runs every step once, newest first, and joins their errors.
func (r *releaser) release() error {
	var errs []error
	for i := len(r.steps) - 1; i >= 0; i-- {
		s := r.steps[i]
		if err := s.fn(); err != nil {
			errs = append(errs, fmt.Errorf("releasing %s: %w", s.name, err))
		}
	}
	r.steps = nil
	return errors.Join(errs...)
}

// releaseInto runs release and merges its error into *errp. A release error
// never masks the primary failure.
func (r *releaser) releaseInto(errp *error, log Logger) {
	relErr := r.release()
	if relErr == nil {
		return
	}
	if *errp == nil {
		*errp = relErr
		return
	}
	log.Warn("resource release failed after error", "error", relErr)
}

// encoderGuard aborts an opened encoder unless it was finalised with Close.
type encoderGuard struct {
	enc    Encoder
	closed bool
}

func (g *encoderGuard) finish() error {
	if g.closed {
		return nil
	}
	g.closed = true
	return g.enc.Abort()
}
