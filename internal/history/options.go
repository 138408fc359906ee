package history

import "time"

// Defaults applied when an option is absent or out of range.
const (
	DefaultMaxSize  = 50
	DefaultDebounce = 300 * time.Millisecond
)

type config struct {
	maxSize    int
	debounce   time.Duration
	replayHold time.Duration
	clock      Clock
	onCommit   func(Snapshot)
}

// Option configures an Engine.
type Option func(*config)

// WithMaxSize bounds the number of retained snapshots.
func WithMaxSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithDebounce sets how long the engine waits after the last edit before
// committing it.
func WithDebounce(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithReplayHold keeps the engine in the Replaying phase for d after an undo
// or redo returns. Hosts that push the restored value back through SetValue
// asynchronously need this; synchronous hosts should leave it at zero.
func WithReplayHold(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.replayHold = d
		}
	}
}

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithOnCommit registers fn to run after every commit, outside the engine lock.
func WithOnCommit(fn func(Snapshot)) Option {
	return func(c *config) {
		c.onCommit = fn
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		maxSize:  DefaultMaxSize,
		debounce: DefaultDebounce,
		clock:    SystemClock(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}
