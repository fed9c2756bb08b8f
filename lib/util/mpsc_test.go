package util

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"
)

// TestBasicOperations tests basic push and consume functionality
func TestBasicOperations(t *testing.T) {
	q := NewMPSC[int](0)
	defer q.Close()

	for i := 0; i < 10; i++ {
		if err := q.Push(context.Background(), i); err != nil {
			t.Fatalf("Failed to push item %d: %v", i, err)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %v", i, val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}

	select {
	case val := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", val)
	case <-time.After(10 * time.Millisecond):
		// Expected timeout, queue is empty
	}
}

// TestConcurrentProducers verifies the queue works correctly with multiple producers
func TestConcurrentProducers(t *testing.T) {
	q := NewMPSC[string](16)

	const numProducers = 10
	const itemsPerProducer = 1000
	totalItems := numProducers * itemsPerProducer

	var wg sync.WaitGroup
	wg.Add(numProducers)
	for p := 0; p < numProducers; p++ {
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				if err := q.Push(context.Background(), fmt.Sprintf("%d-%d", producerID, i)); err != nil {
					t.Errorf("Producer %d failed to push item %d: %v", producerID, i, err)
				}
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}
	go func() {
		wg.Wait()
		q.Close()
	}()

	received := make(map[string]bool)
	lastPerProducer := make(map[int]int)
	for val := range q.Recv() {
		if received[val] {
			t.Errorf("Duplicate item received: %v", val)
		}
		received[val] = true

		var producer, item int
		if _, err := fmt.Sscanf(val, "%d-%d", &producer, &item); err != nil {
			t.Fatalf("Unexpected item %q", val)
		}
		if last, ok := lastPerProducer[producer]; ok && item < last {
			t.Errorf("Items of producer %d out of order: %d after %d", producer, item, last)
		}
		lastPerProducer[producer] = item
	}

	if len(received) != totalItems {
		t.Errorf("Expected %d items, got %d", totalItems, len(received))
	}
}

// TestCapacityBlocksProducers verifies that a full queue blocks Push
func TestCapacityBlocksProducers(t *testing.T) {
	q := NewMPSC[int](2)
	defer q.Close()

	for i := 0; i < 2; i++ {
		if err := q.Push(context.Background(), i); err != nil {
			t.Fatalf("Failed to push item %d: %v", i, err)
		}
	}

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(context.Background(), 2)
	}()

	select {
	case err := <-pushed:
		t.Fatalf("Push should block while the queue is full, returned %v", err)
	case <-time.After(50 * time.Millisecond):
		// Expected, producer is blocked
	}

	for i := 0; i < 3; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %d", i, val)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for item %d", i)
		}
	}
	if err := <-pushed; err != nil {
		t.Errorf("Blocked push failed: %v", err)
	}
}

// TestPushCancelled verifies that a blocked producer returns when its context is done
func TestPushCancelled(t *testing.T) {
	q := NewMPSC[int](1)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pushed := make(chan error, 1)
	go func() {
		for i := 0; ; i++ {
			if err := q.Push(ctx, i); err != nil {
				pushed <- err
				return
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-pushed:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not return after cancel")
	}
}

// TestCloseQueue verifies closing behavior
func TestCloseQueue(t *testing.T) {
	q := NewMPSC[int](0)

	for i := 0; i < 5; i++ {
		if err := q.Push(context.Background(), i); err != nil {
			t.Fatalf("Failed to push item %d: %v", i, err)
		}
	}

	q.Close()
	if !q.IsClosed() {
		t.Error("Queue should be closed")
	}

	if err := q.Push(context.Background(), 100); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}

	// existing items are still delivered
	for i := 0; i < 5; i++ {
		select {
		case val := <-q.Recv():
			if val != i {
				t.Errorf("Expected %d, got %v", i, val)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for item %d after close", i)
		}
	}

	if _, ok := <-q.Recv(); ok {
		t.Error("Channel should be closed but is still open")
	}
}

// TestCloseUnblocksProducers verifies that a producer waiting for space returns on close
func TestCloseUnblocksProducers(t *testing.T) {
	q := NewMPSC[int](1)

	pushed := make(chan error, 1)
	go func() {
		for i := 0; ; i++ {
			if err := q.Push(context.Background(), i); err != nil {
				pushed <- err
				return
			}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-pushed:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Push did not return after close")
	}

	// drain so the consumer goroutine exits
	for range q.Recv() {
	}
}

// BenchmarkMultiProducer benchmarks the queue with multiple producers
func BenchmarkMultiProducer(b *testing.B) {
	q := NewMPSC[int](1024)
	defer q.Close()

	go func() {
		for range q.Recv() {
			// Just consume
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = q.Push(context.Background(), i)
			i++
		}
	})
}
