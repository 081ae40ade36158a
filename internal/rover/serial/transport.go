// Package serial implements the framed, auto-reconnecting transport to the
// downstream rover controller. Every request and response is exactly one
// newline-terminated line of UTF-8 JSON.
package serial

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/voicerover-io/voicerover/internal/pkg/metrics"
	fsmutil "github.com/voicerover-io/voicerover/internal/pkg/util/fsm"
	"github.com/voicerover-io/voicerover/internal/rover/command"
	"github.com/voicerover-io/voicerover/pkg/log"
)

// State is the transport connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"

	// StateFailed is reached only when auto-detection finds no candidate
	// device at all. It persists until the caller retries Connect after
	// the device reappears.
	StateFailed State = "failed"
)

const (
	eventConnect       = "connect"
	eventConnected     = "connected"
	eventConnectFailed = "connect_failed"
	eventNoDevice      = "no_device"
	eventLost          = "lost"
)

// Response is one parsed device response line. Content beyond "valid JSON
// object" is the device's concern.
type Response map[string]any

// Config carries the transport tunables.
type Config struct {
	// Device is an explicit device path. Empty means auto-detect via Globs.
	Device string

	// Globs are the candidate device path patterns for auto-detection.
	Globs []string

	// Baud is the serial line rate.
	Baud int

	// PollInterval bounds a single blocking read while waiting for a
	// response line.
	PollInterval time.Duration

	// MaxBackoff caps the exponential reconnect wait.
	MaxBackoff time.Duration
}

// DefaultConfig returns the stock transport configuration.
func DefaultConfig() Config {
	return Config{
		Globs:        []string{"/dev/ttyUSB*", "/dev/ttyACM*"},
		Baud:         115200,
		PollInterval: 50 * time.Millisecond,
		MaxBackoff:   30 * time.Second,
	}
}

// Transport drives the serial connection state machine. All methods are
// safe for concurrent use; in practice the dispatch loop is the only
// caller besides the producer's STOP fast path.
type Transport struct {
	cfg    Config
	logger log.Logger

	machine *fsm.FSM

	mu       sync.Mutex
	port     Port
	buf      []byte
	attempts int

	open  OpenFunc
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Transport, mainly for tests.
type Option func(*Transport)

// WithOpener substitutes the port opener.
func WithOpener(open OpenFunc) Option {
	return func(t *Transport) { t.open = open }
}

// WithSleep substitutes the backoff wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Transport) { t.sleep = sleep }
}

// New creates a disconnected Transport.
func New(cfg Config, logger log.Logger, opts ...Option) *Transport {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultConfig().Baud
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}

	t := &Transport{
		cfg:    cfg,
		logger: logger.WithName("transport"),
		open:   OpenSystemPort,
		sleep:  sleepCtx,
	}

	t.machine = fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventConnect, Src: []string{string(StateDisconnected), string(StateFailed)}, Dst: string(StateConnecting)},
			{Name: eventConnected, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: eventConnectFailed, Src: []string{string(StateConnecting)}, Dst: string(StateDisconnected)},
			{Name: eventNoDevice, Src: []string{string(StateConnecting)}, Dst: string(StateFailed)},
			{Name: eventLost, Src: []string{string(StateConnected)}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": fsmutil.LogTransitions(t.logger),
			"enter_" + string(StateConnected): func(context.Context, *fsm.Event) {
				metrics.TransportConnected.Set(1)
			},
			"leave_" + string(StateConnected): func(context.Context, *fsm.Event) {
				metrics.TransportConnected.Set(0)
			},
		},
	)

	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the current connection state.
func (t *Transport) State() State {
	return State(t.machine.Current())
}

// Connect opens the serial device, auto-detecting the path when none is
// configured. ErrNoDevice is the unrecoverable case; any other failure is
// transient and worth retrying via Reconnect.
func (t *Transport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectLocked()
}

func (t *Transport) connectLocked() error {
	if t.State() == StateConnected {
		return nil
	}
	t.fire(eventConnect)

	device := t.cfg.Device
	if device == "" {
		detected, err := Discover(t.cfg.Globs, t.logger)
		if err != nil {
			if errors.Is(err, ErrNoDevice) {
				t.fire(eventNoDevice)
			} else {
				t.fire(eventConnectFailed)
			}
			return err
		}
		device = detected
	}

	port, err := t.open(device, t.cfg.Baud)
	if err != nil {
		t.fire(eventConnectFailed)
		return fmt.Errorf("serial connect: %w", err)
	}
	_ = port.SetReadTimeout(t.cfg.PollInterval)

	t.port = port
	t.buf = t.buf[:0]
	t.attempts = 0
	t.fire(eventConnected)
	t.logger.Info("serial link up", "device", device, "baud", t.cfg.Baud)
	return nil
}

// Send writes one command line. On a disconnected state it connects first;
// on a write error it reconnects once and retries once, then gives up. The
// command is discarded by the caller afterwards either way.
func (t *Transport) Send(cmd command.Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() != StateConnected {
		if err := t.connectLocked(); err != nil {
			metrics.CommandsSent.WithLabelValues("failed", string(cmd.Kind)).Inc()
			return err
		}
	}

	line, err := cmd.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Kind, err)
	}
	line = append(line, '\n')

	start := time.Now()
	if err := t.writeLocked(line); err != nil {
		t.logger.Warn("serial write failed, reconnecting once", err, "command", cmd.Kind)
		if rerr := t.reconnectLocked(context.Background()); rerr != nil {
			metrics.CommandsSent.WithLabelValues("failed", string(cmd.Kind)).Inc()
			return err
		}
		if err := t.writeLocked(line); err != nil {
			metrics.CommandsSent.WithLabelValues("failed", string(cmd.Kind)).Inc()
			return err
		}
	}

	metrics.SendLatency.Observe(time.Since(start).Seconds())
	metrics.CommandsSent.WithLabelValues("success", string(cmd.Kind)).Inc()
	return nil
}

func (t *Transport) writeLocked(line []byte) error {
	if t.port == nil {
		return errors.New("serial port not open")
	}
	if _, err := t.port.Write(line); err != nil {
		t.dropLinkLocked()
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// ReadResponse returns the next complete response line as a JSON object,
// or nil when none is available. Partial lines stay buffered across calls;
// several complete lines arriving in one read come back one per call. A
// line that is not a JSON object is a peer-content error: logged, consumed
// and reported as nil without touching the connection state.
func (t *Transport) ReadResponse(blocking bool, timeout time.Duration) Response {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		if line, ok := t.popLineLocked(); ok {
			return t.parseLine(line)
		}
		if t.port == nil {
			return nil
		}
		t.drainLocked()
		if line, ok := t.popLineLocked(); ok {
			return t.parseLine(line)
		}
		if !blocking || !time.Now().Before(deadline) || t.port == nil {
			return nil
		}
	}
}

// drainLocked pulls whatever bytes are available into the read buffer. A
// single read blocks at most PollInterval.
func (t *Transport) drainLocked() {
	chunk := make([]byte, 256)
	n, err := t.port.Read(chunk)
	if n > 0 {
		t.buf = append(t.buf, chunk[:n]...)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		t.logger.Warn("serial read failed", err)
		t.dropLinkLocked()
	}
}

func (t *Transport) popLineLocked() ([]byte, bool) {
	idx := bytes.IndexByte(t.buf, '\n')
	if idx < 0 {
		return nil, false
	}
	line := bytes.TrimRight(t.buf[:idx], "\r")
	rest := make([]byte, len(t.buf)-idx-1)
	copy(rest, t.buf[idx+1:])
	t.buf = rest
	return line, true
}

func (t *Transport) parseLine(line []byte) Response {
	if len(line) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(line, &payload); err != nil {
		t.logger.Warn("discarding malformed response line", err, "line", string(line))
		return nil
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		t.logger.Warn("discarding non-object response line", "line", string(line))
		return nil
	}
	return obj
}

// Reconnect executes exactly one backoff-wait-then-connect cycle. The wait
// is min(2^attempts, MaxBackoff) and the attempt counter resets on any
// successful connect. The dispatcher retries this indefinitely; the
// transport itself never loops.
func (t *Transport) Reconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconnectLocked(ctx)
}

func (t *Transport) reconnectLocked(ctx context.Context) error {
	wait := t.backoffLocked()
	t.logger.Info("reconnect backoff", "wait", wait, "attempt", t.attempts)
	if err := t.sleep(ctx, wait); err != nil {
		return err
	}
	t.attempts++
	metrics.ReconnectAttempts.Inc()
	return t.connectLocked()
}

func (t *Transport) backoffLocked() time.Duration {
	// 2^attempts seconds; the shift saturates well before overflow.
	if t.attempts > 20 {
		return t.cfg.MaxBackoff
	}
	wait := time.Duration(1<<uint(t.attempts)) * time.Second
	if wait > t.cfg.MaxBackoff {
		wait = t.cfg.MaxBackoff
	}
	return wait
}

// Disconnect closes the underlying stream and clears buffered state. It is
// idempotent.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropLinkLocked()
}

func (t *Transport) dropLinkLocked() {
	if t.port != nil {
		_ = t.port.Close()
		t.port = nil
	}
	t.buf = t.buf[:0]
	if t.State() == StateConnected {
		t.fire(eventLost)
	}
}

// fire applies a state machine event, tolerating no-op transitions.
func (t *Transport) fire(event string) {
	if err := t.machine.Event(context.Background(), event); err != nil {
		t.logger.Debug("state event ignored", "event", event, "state", t.machine.Current(), "reason", err.Error())
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
