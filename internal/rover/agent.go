// Package rover assembles the voice-command pipeline: a recognizer feeds
// utterances to the parser, parsed commands flow through the priority
// queue, and the dispatcher drains the queue into the serial transport.
package rover

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voicerover-io/voicerover/internal/pkg/metrics"
	"github.com/voicerover-io/voicerover/internal/rover/command"
	"github.com/voicerover-io/voicerover/internal/rover/dispatcher"
	"github.com/voicerover-io/voicerover/internal/rover/parser"
	"github.com/voicerover-io/voicerover/internal/rover/queue"
	"github.com/voicerover-io/voicerover/internal/rover/serial"
	"github.com/voicerover-io/voicerover/internal/rover/server"
	"github.com/voicerover-io/voicerover/internal/rover/telemetry"
	"github.com/voicerover-io/voicerover/pkg/log"
)

// Agent owns the pipeline components and their lifecycle.
type Agent struct {
	id         string
	parser     *parser.Parser
	queue      *queue.Queue
	transport  *serial.Transport
	dispatcher *dispatcher.Dispatcher
	diag       *server.Server
	publisher  telemetry.Publisher
	recognizer Recognizer
	logger     log.Logger

	// produceMu serializes producers so a STOP's clear-then-send cannot
	// interleave with a concurrent enqueue of the same utterance batch.
	produceMu sync.Mutex
}

// NewAgent builds an Agent from ready-made components. diag may be nil.
func NewAgent(
	id string,
	p *parser.Parser,
	q *queue.Queue,
	transport *serial.Transport,
	d *dispatcher.Dispatcher,
	diag *server.Server,
	publisher telemetry.Publisher,
	recognizer Recognizer,
	logger log.Logger,
) *Agent {
	return &Agent{
		id:         id,
		parser:     p,
		queue:      q,
		transport:  transport,
		dispatcher: d,
		diag:       diag,
		publisher:  publisher,
		recognizer: recognizer,
		logger:     logger.WithName("agent"),
	}
}

// Run starts all components and blocks until the context is done or a
// component fails. On shutdown a final stop command is sent so the rover
// does not keep executing its last instruction.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting rover agent", "roverID", a.id)

	if err := a.publisher.Start(ctx); err != nil {
		return err
	}

	// Best effort; the dispatcher recovers the link if this fails.
	if err := a.transport.Connect(); err != nil {
		a.logger.Warn("initial serial connect failed", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.dispatcher.Run(gctx) })
	if a.diag != nil {
		g.Go(func() error { return a.diag.Start(gctx) })
	}
	g.Go(func() error { return a.recognizeLoop(gctx) })

	err := g.Wait()

	a.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// recognizeLoop pumps utterances from the recognizer into the pipeline.
// EOF on the utterance source stops the loop without failing the agent.
func (a *Agent) recognizeLoop(ctx context.Context) error {
	for {
		utterance, err := a.recognizer.Recognize(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				a.logger.Info("utterance source closed")
				return nil
			}
			return err
		}
		a.HandleUtterance(utterance)
	}
}

// HandleUtterance parses one utterance and feeds the resulting commands
// into the queue. An emergency stop bypasses the queue entirely: pending
// work is cleared and the stop goes straight to the transport.
func (a *Agent) HandleUtterance(utterance string) {
	cmds := a.parser.Parse(utterance)
	if len(cmds) == 0 {
		metrics.UtterancesParsed.WithLabelValues("no_match").Inc()
		a.logger.Debug("utterance produced no commands", "utterance", utterance)
		a.publisher.Publish(telemetry.Event{Event: "parse_failed", OK: false})
		return
	}
	metrics.UtterancesParsed.WithLabelValues("matched").Inc()

	a.produceMu.Lock()
	defer a.produceMu.Unlock()

	for _, cmd := range cmds {
		if cmd.IsStop() {
			a.emergencyStop(cmd)
			continue
		}
		if !a.queue.Enqueue(cmd) {
			metrics.CommandsDropped.Inc()
			a.logger.Warn("queue full, dropping command", "command", cmd.Kind)
		}
	}
	metrics.QueueDepth.Set(float64(a.queue.Size()))
}

// emergencyStop clears pending work and pushes the stop directly onto the
// wire. The dispatcher may still be mid-send of an older command; that one
// command completes before the stop takes effect.
func (a *Agent) emergencyStop(stop command.Command) {
	a.queue.Clear()
	a.logger.Info("emergency stop", "cleared", true)

	if err := a.transport.Send(stop); err != nil {
		a.logger.Error(err, "failed to deliver emergency stop")
		a.publisher.Publish(telemetry.Event{Event: "stop", Command: string(stop.Kind), OK: false})
		return
	}
	a.publisher.Publish(telemetry.Event{Event: "stop", Command: string(stop.Kind), OK: true})
}

// shutdown sends a final stop and tears the components down.
func (a *Agent) shutdown() {
	a.logger.Info("agent shutting down")

	a.queue.Clear()
	if a.transport.State() == serial.StateConnected {
		if err := a.transport.Send(command.Stop()); err != nil {
			a.logger.Warn("final stop not delivered", err)
		}
	}
	a.transport.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a.publisher.Close(ctx)
}

// telemetrySink forwards dispatch outcomes to the telemetry publisher.
type telemetrySink struct {
	publisher telemetry.Publisher
}

func (s *telemetrySink) CommandDispatched(cmd command.Command, ok bool, resp serial.Response) {
	s.publisher.Publish(telemetry.Event{
		Event:    "dispatch",
		Command:  string(cmd.Kind),
		OK:       ok,
		Response: resp,
	})
}
