// Package correlator waits on a connection's frame log for the frame that
// answers an outbound command.
package correlator

import (
	"context"
	"errors"
	"time"

	"github.com/papercomputeco/neolink/pkg/neo"
)

// DefaultPollInterval is how often the frame log is rescanned.
const DefaultPollInterval = 200 * time.Millisecond

// ErrTimeout is returned by Await when the deadline passes with no match.
var ErrTimeout = errors.New("timed out waiting for frame")

// Source is a readable, append-only frame log.
type Source interface {
	Since(cursor int) []neo.Frame
}

// Predicate inspects one frame. A true result ends the wait with that frame;
// an error ends it with the error.
type Predicate func(f neo.Frame) (bool, error)

// Option configures a Correlator.
type Option func(*Correlator)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Correlator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// Correlator holds a private read cursor into a Source.
type Correlator struct {
	src      Source
	cursor   int
	interval time.Duration
}

// New returns a correlator that starts reading at cursor. Callers take the
// cursor from the log length before sending the command being awaited.
func New(src Source, cursor int, opts ...Option) *Correlator {
	c := &Correlator{
		src:      src,
		cursor:   cursor,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cursor is the position of the next frame to be evaluated.
func (c *Correlator) Cursor() int {
	return c.cursor
}

// Await evaluates frames in arrival order until match accepts one, match
// fails, or the deadline passes. Cancellation of ctx returns ctx.Err().
func (c *Correlator) Await(ctx context.Context, deadline time.Time, match Predicate) (neo.Frame, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		f, ok, err := c.scan(match)
		if err != nil || ok {
			return f, err
		}

		select {
		case <-ctx.Done():
			return neo.Frame{}, ctx.Err()
		case <-timer.C:
			// One last look so frames that landed right before the
			// deadline are not lost.
			f, ok, err := c.scan(match)
			if err != nil || ok {
				return f, err
			}
			return neo.Frame{}, ErrTimeout
		case <-ticker.C:
		}
	}
}

func (c *Correlator) scan(match Predicate) (neo.Frame, bool, error) {
	for _, f := range c.src.Since(c.cursor) {
		c.cursor = f.Seq + 1

		ok, err := match(f)
		if err != nil {
			return f, false, err
		}
		if ok {
			return f, true, nil
		}
	}
	return neo.Frame{}, false, nil
}
