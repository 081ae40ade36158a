package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voicerover-io/voicerover/internal/rover/command"
	"github.com/voicerover-io/voicerover/internal/rover/queue"
	"github.com/voicerover-io/voicerover/internal/rover/serial"
	"github.com/voicerover-io/voicerover/pkg/log"
)

type fakePort struct {
	mu     sync.Mutex
	chunks [][]byte
	writes [][]byte
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Close() error                       { return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

type outcome struct {
	cmd  command.Command
	ok   bool
	resp serial.Response
}

type recordSink struct{ ch chan outcome }

func (s *recordSink) CommandDispatched(cmd command.Command, ok bool, resp serial.Response) {
	s.ch <- outcome{cmd: cmd, ok: ok, resp: resp}
}

func instantSleep(context.Context, time.Duration) error { return nil }

func TestDispatchDeliversAndReportsResponse(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("{\"status\":\"ok\"}\n")}}
	tr := serial.New(serial.Config{Device: "/dev/ttyTEST0"}, log.NewNopLogger(),
		serial.WithOpener(func(string, int) (serial.Port, error) { return port, nil }),
		serial.WithSleep(instantSleep),
	)

	q := queue.New(10)
	sink := &recordSink{ch: make(chan outcome, 1)}
	d := New(Config{DequeueTimeout: 20 * time.Millisecond, ResponseTimeout: 200 * time.Millisecond},
		q, tr, nil, sink, log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = d.Run(ctx); close(done) }()

	cmd, err := command.New(command.KindMoveForward, map[string]any{"speed": 0.4}, command.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	q.Enqueue(cmd)

	select {
	case got := <-sink.ch:
		if !got.ok {
			t.Errorf("dispatch reported failure")
		}
		if got.cmd.Kind != command.KindMoveForward {
			t.Errorf("dispatched kind = %s, want move_forward", got.cmd.Kind)
		}
		if got.resp == nil || got.resp["status"] != "ok" {
			t.Errorf("response = %v, want status ok", got.resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not complete")
	}

	cancel()
	<-done

	port.mu.Lock()
	defer port.mu.Unlock()
	if len(port.writes) == 0 {
		t.Error("nothing was written to the port")
	}
}

func TestDispatchDropsCommandOnSendFailure(t *testing.T) {
	tr := serial.New(serial.Config{Device: "/dev/ttyTEST0"}, log.NewNopLogger(),
		serial.WithOpener(func(string, int) (serial.Port, error) { return nil, errors.New("device busy") }),
		serial.WithSleep(instantSleep),
	)

	q := queue.New(10)
	sink := &recordSink{ch: make(chan outcome, 1)}
	d := New(Config{DequeueTimeout: 20 * time.Millisecond, ResponseTimeout: 50 * time.Millisecond},
		q, tr, nil, sink, log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = d.Run(ctx); close(done) }()

	cmd, err := command.New(command.KindMoveForward, map[string]any{"speed": 0.4}, command.PriorityNormal)
	if err != nil {
		t.Fatal(err)
	}
	q.Enqueue(cmd)

	select {
	case got := <-sink.ch:
		if got.ok {
			t.Error("dispatch should report failure when the send fails")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch outcome never arrived")
	}

	// The command is dropped, never re-queued.
	if q.Size() != 0 {
		t.Errorf("queue size = %d, want 0", q.Size())
	}

	cancel()
	<-done
}
