package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/voicerover-io/voicerover/internal/rover/command"
)

func forward(speed float64) command.Command {
	return command.Command{
		Kind:       command.KindMoveForward,
		Parameters: map[string]any{"speed": speed},
		Priority:   command.PriorityNormal,
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := New(10)

	q.Enqueue(forward(0.1))
	q.Enqueue(command.Stop())
	q.Enqueue(forward(0.2))

	got, ok := q.Dequeue(0)
	if !ok || got.Kind != command.KindStop {
		t.Fatalf("first dequeue = %v, want stop", got)
	}

	// Equal priorities come out in arrival order.
	got, _ = q.Dequeue(0)
	if got.Parameters["speed"] != 0.1 {
		t.Errorf("second dequeue speed = %v, want 0.1", got.Parameters["speed"])
	}
	got, _ = q.Dequeue(0)
	if got.Parameters["speed"] != 0.2 {
		t.Errorf("third dequeue speed = %v, want 0.2", got.Parameters["speed"])
	}
}

func TestFIFOStability(t *testing.T) {
	q := New(100)
	for i := 0; i < 50; i++ {
		q.Enqueue(forward(float64(i)))
	}
	for i := 0; i < 50; i++ {
		got, ok := q.Dequeue(0)
		if !ok {
			t.Fatalf("dequeue %d: queue unexpectedly empty", i)
		}
		if got.Parameters["speed"] != float64(i) {
			t.Fatalf("dequeue %d: got %v, want %v", i, got.Parameters["speed"], float64(i))
		}
	}
}

func TestCapacityRejectsWithoutBlocking(t *testing.T) {
	q := New(2)

	if !q.Enqueue(forward(0.1)) || !q.Enqueue(forward(0.2)) {
		t.Fatal("enqueue within capacity should succeed")
	}

	done := make(chan bool, 1)
	go func() { done <- q.Enqueue(forward(0.3)) }()

	select {
	case accepted := <-done:
		if accepted {
			t.Error("enqueue beyond capacity should report false")
		}
	case <-time.After(time.Second):
		t.Fatal("enqueue beyond capacity blocked")
	}

	if q.Size() != 2 {
		t.Errorf("size = %d, want 2", q.Size())
	}
}

func TestClearEmptiesAtomically(t *testing.T) {
	q := New(10)
	for i := 0; i < 5; i++ {
		q.Enqueue(forward(float64(i)))
	}

	q.Clear()

	if !q.IsEmpty() {
		t.Errorf("size after clear = %d, want 0", q.Size())
	}
	if _, ok := q.Dequeue(0); ok {
		t.Error("dequeue after clear should find nothing")
	}

	// The queue stays usable after a clear.
	if !q.Enqueue(forward(0.5)) {
		t.Error("enqueue after clear failed")
	}
	if got, ok := q.Dequeue(0); !ok || got.Parameters["speed"] != 0.5 {
		t.Errorf("dequeue after clear = %v, %v", got, ok)
	}
}

func TestDequeueTimeout(t *testing.T) {
	q := New(10)

	start := time.Now()
	_, ok := q.Dequeue(50 * time.Millisecond)
	if ok {
		t.Fatal("dequeue on empty queue should time out")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("dequeue returned after %s, want ~50ms", elapsed)
	}
}

func TestDequeueWakesOnEnqueue(t *testing.T) {
	q := New(10)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(command.Stop())
	}()

	got, ok := q.Dequeue(2 * time.Second)
	if !ok || got.Kind != command.KindStop {
		t.Fatalf("dequeue = %v, %v; want stop", got, ok)
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := New(1000)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(forward(0.4))
			}
		}()
	}
	wg.Wait()

	if q.Size() != 800 {
		t.Errorf("size = %d, want 800", q.Size())
	}

	count := 0
	for {
		if _, ok := q.Dequeue(0); !ok {
			break
		}
		count++
	}
	if count != 800 {
		t.Errorf("drained %d commands, want 800", count)
	}
}
