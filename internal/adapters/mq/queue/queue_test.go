package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue[int](WithName("test"))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, i); err != nil {
			t.Fatalf("unexpected enqueue error: %v", err)
		}
	}
	if l := q.Len(ctx); l != 3 {
		t.Errorf("expected length 3, got %d", l)
	}

	ch := q.Dequeue(ctx)
	for i := 0; i < 3; i++ {
		if v := <-ch; v != i {
			t.Errorf("expected %d, got %d", i, v)
		}
	}
}

func TestInMemoryQueue_NeverBlocksProducer(t *testing.T) {
	q := NewInMemoryQueue[int](WithInitialCapacity(4))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100_000; i++ {
			if err := q.Enqueue(ctx, i); err != nil {
				t.Errorf("enqueue %d: %v", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked without a consumer")
	}
	if l := q.Len(ctx); l != 100_000 {
		t.Errorf("expected 100000 queued values, got %d", l)
	}
}

func TestInMemoryQueue_CloseDrains(t *testing.T) {
	q := NewInMemoryQueue[string]()
	ctx := context.Background()

	_ = q.Enqueue(ctx, "a")
	_ = q.Enqueue(ctx, "b")
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Enqueue(ctx, "c"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}

	var got []string
	for v := range q.Dequeue(ctx) {
		got = append(got, v)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue[int]()
	ctx := context.Background()

	const producers, perProducer = 8, 5000
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Enqueue(ctx, i)
			}
		}()
	}

	count := 0
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for range q.Dequeue(ctx) {
			count++
		}
	}()

	wg.Wait()
	_ = q.Close()
	select {
	case <-consumed:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not finish")
	}
	if count != producers*perProducer {
		t.Errorf("expected %d values, got %d", producers*perProducer, count)
	}
}

func TestInMemoryQueue_ContextCancelStopsDelivery(t *testing.T) {
	q := NewInMemoryQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := q.Dequeue(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected no values")
		}
	case <-time.After(time.Second):
		t.Fatal("delivery channel was not closed after cancel")
	}
}
