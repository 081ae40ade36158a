package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*QueueOptions)(nil)

// QueueOptions configures the pending-command queue.
type QueueOptions struct {
	// Capacity is the fixed queue size; enqueues beyond it are dropped.
	Capacity int `json:"capacity" mapstructure:"capacity"`

	// DequeueTimeout bounds one blocking dequeue in the dispatch loop,
	// which also bounds shutdown latency.
	DequeueTimeout time.Duration `json:"dequeue-timeout" mapstructure:"dequeue-timeout"`
}

// NewQueueOptions returns QueueOptions with defaults.
func NewQueueOptions() *QueueOptions {
	return &QueueOptions{
		Capacity:       100,
		DequeueTimeout: time.Second,
	}
}

// Validate checks the option values.
func (o *QueueOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("queue capacity must be positive, got %d", o.Capacity))
	}
	if o.DequeueTimeout <= 0 || o.DequeueTimeout > 2*time.Second {
		errs = append(errs, fmt.Errorf("queue dequeue timeout must be in (0s, 2s], got %s", o.DequeueTimeout))
	}
	return errs
}

// AddFlags binds the group to the given flag set.
func (o *QueueOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.Capacity, "queue.capacity", o.Capacity, "Maximum number of pending commands.")
	fs.DurationVar(&o.DequeueTimeout, "queue.dequeue-timeout", o.DequeueTimeout, "Bound on one blocking dequeue in the dispatch loop.")
}
