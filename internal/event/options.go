package event

import "github.com/rs/zerolog"

// Option configures a Broadcaster.
type Option func(*config)

// config contains configuration for a broadcaster.
type config struct {
	// exec answers the designated-context check. Nil binds to the
	// goroutine that calls New.
	exec ExecContext

	// log receives operational logging.
	log zerolog.Logger

	// metrics receives counters and gauges.
	metrics Metrics

	// panicHandler is called when an observer panics.
	panicHandler PanicHandler

	// allowList holds ids that bypass the suspend gate.
	allowList []EventID

	// suspended is the initial suspend flag.
	suspended bool
}

// defaultConfig returns the default configuration.
func defaultConfig() config {
	return config{
		log:          zerolog.Nop(),
		metrics:      nopMetrics{},
		panicHandler: DefaultPanicHandler,
	}
}

// WithExecContext sets the designated execution context.
func WithExecContext(ec ExecContext) Option {
	return func(c *config) {
		if ec != nil {
			c.exec = ec
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithPanicHandler sets the handler called when an observer panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(c *config) {
		if h != nil {
			c.panicHandler = h
		}
	}
}

// WithAllowList sets the initial allow-list override.
func WithAllowList(ids ...EventID) Option {
	return func(c *config) {
		c.allowList = append([]EventID(nil), ids...)
	}
}

// WithSuspended sets the initial suspend flag.
func WithSuspended(suspended bool) Option {
	return func(c *config) {
		c.suspended = suspended
	}
}

// PostOption configures a single post.
type PostOption func(*postConfig)

type postConfig struct {
	urgent bool
}

// WithUrgent delivers the post immediately even while suspended.
func WithUrgent() PostOption {
	return func(c *postConfig) {
		c.urgent = true
	}
}
