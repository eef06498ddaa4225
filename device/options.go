package device

import (
	"time"

	"github.com/najoast/sngo-iot/logger"
)

// DefaultQueryTimeout bounds a bulk read unless configured otherwise.
const DefaultQueryTimeout = 3 * time.Second

// Options is shared by a Manager and everything it spawns.
type Options struct {
	// QueryTimeout is the default bulk read deadline.
	QueryTimeout time.Duration

	// Mailbox sizes per actor kind. Zero uses the system default.
	GroupMailboxSize  int
	DeviceMailboxSize int
	QueryMailboxSize  int

	Logger  *logger.Logger
	Metrics *Metrics
}

// DefaultOptions returns Options with the default query timeout and a no-op
// logger.
func DefaultOptions() Options {
	return Options{
		QueryTimeout: DefaultQueryTimeout,
		Logger:       logger.Nop(),
	}
}

func (o Options) withDefaults() Options {
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = DefaultQueryTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}
