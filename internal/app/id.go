package app

import (
	"time"

	"github.com/google/uuid"
)

// Option customizes how a service stamps identifiers and times.
type Option func(*stamps)

type stamps struct {
	now   func() time.Time
	newID func() string
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *stamps) { s.now = now }
}

// WithIDGenerator injects the identifier generator, e.g. a deterministic
// sequence in tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *stamps) { s.newID = gen }
}

func newStamps(opts []Option) stamps {
	s := stamps{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s stamps) timestamp() time.Time {
	return s.now().UTC()
}
