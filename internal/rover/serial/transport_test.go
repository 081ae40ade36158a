package serial

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/voicerover-io/voicerover/internal/rover/command"
	"github.com/voicerover-io/voicerover/pkg/log"
)

// fakePort is an in-memory Port. Each queued chunk is served by one Read;
// an exhausted port behaves like a timed-out serial read.
type fakePort struct {
	mu         sync.Mutex
	chunks     [][]byte
	writes     [][]byte
	failWrites int
	closed     bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	if n == len(p.chunks[0]) {
		p.chunks = p.chunks[1:]
	} else {
		p.chunks[0] = p.chunks[0][n:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWrites > 0 {
		p.failWrites--
		return 0, errors.New("input/output error")
	}
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) push(chunk string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, []byte(chunk))
}

func (p *fakePort) written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.writes))
	for i, w := range p.writes {
		out[i] = string(w)
	}
	return out
}

// newTestTransport wires a Transport to a fake opener with instant sleeps,
// recording every backoff wait.
func newTestTransport(cfg Config, open OpenFunc, waits *[]time.Duration) *Transport {
	return New(cfg, log.NewNopLogger(),
		WithOpener(open),
		WithSleep(func(_ context.Context, d time.Duration) error {
			if waits != nil {
				*waits = append(*waits, d)
			}
			return nil
		}),
	)
}

func singlePortOpener(port *fakePort) OpenFunc {
	return func(string, int) (Port, error) { return port, nil }
}

func TestConnectExplicitDevice(t *testing.T) {
	port := &fakePort{}
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0"}, singlePortOpener(port), nil)

	if tr.State() != StateDisconnected {
		t.Fatalf("initial state = %s, want disconnected", tr.State())
	}
	if err := tr.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if tr.State() != StateConnected {
		t.Errorf("state = %s, want connected", tr.State())
	}

	// Connect on a connected transport is a no-op.
	if err := tr.Connect(); err != nil {
		t.Errorf("second connect: %v", err)
	}
}

func TestConnectNoDevice(t *testing.T) {
	glob := filepath.Join(t.TempDir(), "tty*")
	tr := newTestTransport(Config{Globs: []string{glob}}, singlePortOpener(&fakePort{}), nil)

	err := tr.Connect()
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("connect error = %v, want ErrNoDevice", err)
	}
	if tr.State() != StateFailed {
		t.Errorf("state = %s, want failed", tr.State())
	}
}

func TestConnectRecoversAfterDeviceAppears(t *testing.T) {
	dir := t.TempDir()
	glob := filepath.Join(dir, "tty*")
	tr := newTestTransport(Config{Globs: []string{glob}}, singlePortOpener(&fakePort{}), nil)

	if err := tr.Connect(); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("connect error = %v, want ErrNoDevice", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "ttyUSB0"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := tr.Connect(); err != nil {
		t.Fatalf("connect after device appeared: %v", err)
	}
	if tr.State() != StateConnected {
		t.Errorf("state = %s, want connected", tr.State())
	}
}

func TestSendFramesCommand(t *testing.T) {
	port := &fakePort{}
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0"}, singlePortOpener(port), nil)

	stop := command.Stop()
	if err := tr.Send(stop); err != nil {
		t.Fatalf("send: %v", err)
	}

	writes := port.written()
	if len(writes) != 1 {
		t.Fatalf("wrote %d lines, want 1", len(writes))
	}
	want := `{"command":"stop","parameters":{},"priority":100}` + "\n"
	if writes[0] != want {
		t.Errorf("wire line = %q, want %q", writes[0], want)
	}
}

func TestSendRetriesOnceAfterWriteError(t *testing.T) {
	port := &fakePort{failWrites: 1}
	var waits []time.Duration
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0"}, singlePortOpener(port), &waits)

	cmd, err := command.New(command.KindMoveForward, map[string]any{"speed": 0.4}, command.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Send(cmd); err != nil {
		t.Fatalf("send with one write failure: %v", err)
	}

	if len(port.written()) != 1 {
		t.Fatalf("wrote %d lines, want 1", len(port.written()))
	}
	if len(waits) != 1 {
		t.Errorf("reconnect waits = %v, want one backoff cycle", waits)
	}
	if tr.State() != StateConnected {
		t.Errorf("state = %s, want connected", tr.State())
	}
}

func TestReadResponseSplitsBatchedLines(t *testing.T) {
	port := &fakePort{}
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0"}, singlePortOpener(port), nil)
	if err := tr.Connect(); err != nil {
		t.Fatal(err)
	}

	// Two complete lines arrive in a single read.
	port.push("{\"status\":\"ok\"}\n{\"status\":\"done\"}\n")

	first := tr.ReadResponse(false, 0)
	if first == nil || first["status"] != "ok" {
		t.Fatalf("first response = %v, want status ok", first)
	}
	second := tr.ReadResponse(false, 0)
	if second == nil || second["status"] != "done" {
		t.Fatalf("second response = %v, want status done", second)
	}
	if third := tr.ReadResponse(false, 0); third != nil {
		t.Errorf("third response = %v, want nil", third)
	}
}

func TestReadResponseBuffersPartialLines(t *testing.T) {
	port := &fakePort{}
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0"}, singlePortOpener(port), nil)
	if err := tr.Connect(); err != nil {
		t.Fatal(err)
	}

	port.push(`{"status":`)
	if got := tr.ReadResponse(false, 0); got != nil {
		t.Fatalf("partial line returned %v, want nil", got)
	}

	port.push("\"ok\"}\r\n")
	got := tr.ReadResponse(false, 0)
	if got == nil || got["status"] != "ok" {
		t.Errorf("completed line = %v, want status ok", got)
	}
}

func TestReadResponseRejectsNonObjectLines(t *testing.T) {
	port := &fakePort{}
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0"}, singlePortOpener(port), nil)
	if err := tr.Connect(); err != nil {
		t.Fatal(err)
	}

	port.push("[1,2,3]\nnot json at all\n{\"status\":\"ok\"}\n")

	if got := tr.ReadResponse(false, 0); got != nil {
		t.Errorf("array line = %v, want nil", got)
	}
	if got := tr.ReadResponse(false, 0); got != nil {
		t.Errorf("garbage line = %v, want nil", got)
	}
	if got := tr.ReadResponse(false, 0); got == nil || got["status"] != "ok" {
		t.Errorf("object line = %v, want status ok", got)
	}
	if tr.State() != StateConnected {
		t.Errorf("peer content errors must not drop the link, state = %s", tr.State())
	}
}

func TestReconnectBackoffGrowsAndCaps(t *testing.T) {
	var waits []time.Duration
	failing := func(string, int) (Port, error) { return nil, errors.New("device busy") }
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0", MaxBackoff: 8 * time.Second}, failing, &waits)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := tr.Reconnect(ctx); err == nil {
			t.Fatal("reconnect against a failing opener should error")
		}
	}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %s, want %s", i, waits[i], want[i])
		}
	}
}

func TestBackoffResetsAfterSuccessfulConnect(t *testing.T) {
	var waits []time.Duration
	calls := 0
	port := &fakePort{}
	open := func(string, int) (Port, error) {
		calls++
		if calls <= 2 {
			return nil, errors.New("device busy")
		}
		return port, nil
	}
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0", MaxBackoff: 30 * time.Second}, open, &waits)

	ctx := context.Background()
	for tr.State() != StateConnected {
		_ = tr.Reconnect(ctx)
	}
	tr.Disconnect()

	waits = nil
	_ = tr.Reconnect(ctx)
	if len(waits) != 1 || waits[0] != time.Second {
		t.Errorf("waits after reset = %v, want [1s]", waits)
	}
}

func TestReconnectHonorsContextCancel(t *testing.T) {
	tr := New(Config{Device: "/dev/ttyTEST0"}, log.NewNopLogger(),
		WithOpener(func(string, int) (Port, error) { return nil, errors.New("device busy") }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tr.Reconnect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("reconnect error = %v, want context.Canceled", err)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	port := &fakePort{}
	tr := newTestTransport(Config{Device: "/dev/ttyTEST0"}, singlePortOpener(port), nil)
	if err := tr.Connect(); err != nil {
		t.Fatal(err)
	}

	tr.Disconnect()
	tr.Disconnect()

	if tr.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", tr.State())
	}
	if !port.closed {
		t.Error("port was not closed")
	}
}
