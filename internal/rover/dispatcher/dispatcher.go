// Package dispatcher runs the loop that drains the priority queue into the
// serial transport.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/voicerover-io/voicerover/internal/pkg/metrics"
	"github.com/voicerover-io/voicerover/internal/rover/command"
	"github.com/voicerover-io/voicerover/internal/rover/queue"
	"github.com/voicerover-io/voicerover/internal/rover/serial"
	"github.com/voicerover-io/voicerover/pkg/log"
)

// Sink receives dispatch outcomes, e.g. for telemetry. Implementations
// must not block.
type Sink interface {
	CommandDispatched(cmd command.Command, ok bool, resp serial.Response)
}

type nopSink struct{}

func (nopSink) CommandDispatched(command.Command, bool, serial.Response) {}

// Config carries the loop timings. Both are finite so shutdown latency
// stays bounded.
type Config struct {
	// DequeueTimeout bounds one blocking wait for a queued command.
	DequeueTimeout time.Duration

	// ResponseTimeout bounds the wait for the device's response line
	// after a send.
	ResponseTimeout time.Duration
}

// DefaultConfig returns the stock loop timings.
func DefaultConfig() Config {
	return Config{
		DequeueTimeout:  time.Second,
		ResponseTimeout: time.Second,
	}
}

// Dispatcher is the single consumer of the command queue.
type Dispatcher struct {
	cfg       Config
	queue     *queue.Queue
	transport *serial.Transport
	watcher   *serial.DeviceWatcher
	sink      Sink
	logger    log.Logger
}

// New creates a Dispatcher. watcher and sink may be nil.
func New(cfg Config, q *queue.Queue, t *serial.Transport, w *serial.DeviceWatcher, sink Sink, logger log.Logger) *Dispatcher {
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = DefaultConfig().DequeueTimeout
	}
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = DefaultConfig().ResponseTimeout
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Dispatcher{
		cfg:       cfg,
		queue:     q,
		transport: t,
		watcher:   w,
		sink:      sink,
		logger:    logger.WithName("dispatcher"),
	}
}

// Run drains the queue until the context is done. Each blocking step uses a
// finite timeout, so shutdown latency is bounded by the larger of the two
// configured waits.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatch loop started")
	defer d.logger.Info("dispatch loop stopped")

	for ctx.Err() == nil {
		cmd, ok := d.queue.Dequeue(d.cfg.DequeueTimeout)
		metrics.QueueDepth.Set(float64(d.queue.Size()))
		if !ok {
			continue
		}
		d.dispatch(ctx, cmd)
	}
	return nil
}

// dispatch sends one command and collects the device's response. A failed
// send drops the command (it is owned by this loop and never re-queued)
// and re-establishes the link before the next dequeue.
func (d *Dispatcher) dispatch(ctx context.Context, cmd command.Command) {
	if err := d.transport.Send(cmd); err != nil {
		d.logger.Warn("send failed, dropping command", err, "command", cmd.Kind)
		d.sink.CommandDispatched(cmd, false, nil)
		d.recover(ctx, err)
		return
	}

	resp := d.transport.ReadResponse(true, d.cfg.ResponseTimeout)
	if resp != nil {
		d.logger.Debug("device response", "command", cmd.Kind, "response", resp)
	}
	d.sink.CommandDispatched(cmd, true, resp)
}

// recover retries the connection until it is up or shutdown begins. When
// no device path exists at all, it waits for the device node to reappear
// instead of burning backoff cycles.
func (d *Dispatcher) recover(ctx context.Context, cause error) {
	for ctx.Err() == nil && d.transport.State() != serial.StateConnected {
		if errors.Is(cause, serial.ErrNoDevice) && d.watcher != nil {
			if _, err := d.watcher.Wait(ctx); err != nil {
				return
			}
		}
		cause = d.transport.Reconnect(ctx)
		if cause != nil && ctx.Err() == nil {
			d.logger.Warn("reconnect attempt failed", cause)
		}
	}
}
