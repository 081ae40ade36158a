package serial

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voicerover-io/voicerover/pkg/log"
)

func TestWaitReturnsExistingDevice(t *testing.T) {
	dir := t.TempDir()
	device := filepath.Join(dir, "ttyUSB0")
	if err := os.WriteFile(device, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	w := NewDeviceWatcher([]string{filepath.Join(dir, "tty*")}, log.NewNopLogger())

	got, err := w.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got != device {
		t.Errorf("wait returned %q, want %q", got, device)
	}
}

func TestWaitSeesDeviceAppear(t *testing.T) {
	dir := t.TempDir()
	device := filepath.Join(dir, "ttyACM0")
	w := NewDeviceWatcher([]string{filepath.Join(dir, "tty*")}, log.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		device string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		d, err := w.Wait(ctx)
		done <- result{device: d, err: err}
	}()

	// Give Wait time to install its watches, then plug the device in.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(device, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("wait: %v", got.err)
		}
		if got.device != device {
			t.Errorf("wait returned %q, want %q", got.device, device)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not notice the device appearing")
	}
}

func TestWaitIgnoresNonMatchingNodes(t *testing.T) {
	dir := t.TempDir()
	w := NewDeviceWatcher([]string{filepath.Join(dir, "ttyUSB*")}, log.NewNopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := w.Wait(ctx)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "unrelated"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	// Only the context deadline should end the wait.
	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("wait error = %v, want context.DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return at the deadline")
	}
}

func TestWaitHonorsCancel(t *testing.T) {
	dir := t.TempDir()
	w := NewDeviceWatcher([]string{filepath.Join(dir, "tty*")}, log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := w.Wait(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("wait error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not return after cancellation")
	}
}
