package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

func job(seq int) Job {
	return Job{Seq: seq, Recording: model.Recording{ID: fmt.Sprintf("rec-%d", seq)}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.EnqueueWait(ctx, job(1)); err != nil {
		t.Errorf("expected enqueue to succeed, got %v", err)
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.Recording.ID != "rec-1" || j.Seq != 1 {
		t.Errorf("expected rec-1, got %v", j.Recording.ID)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if err := q.EnqueueWait(ctx, job(1)); err != nil {
		t.Errorf("expected enqueue to succeed, got %v", err)
	}
	if err := q.EnqueueWait(ctx, job(2)); err != nil {
		t.Errorf("expected enqueue to succeed, got %v", err)
	}

	full, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.EnqueueWait(full, job(3)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected enqueue to wait out the deadline when full, got %v", err)
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_EnqueueWaitBlocksUntilSpace(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.EnqueueWait(ctx, job(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.EnqueueWait(ctx, job(2)) }()

	select {
	case err := <-done:
		t.Fatalf("expected enqueue to block on a full queue, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	out := q.Dequeue(ctx)
	if j := <-out; j.Seq != 1 {
		t.Errorf("expected seq 1 first, got %d", j.Seq)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected blocked enqueue to succeed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue never completed")
	}

	if j := <-out; j.Seq != 2 {
		t.Errorf("expected seq 2 second, got %d", j.Seq)
	}
}

func TestInMemoryQueue_EnqueueWaitHonoursContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	if err := q.EnqueueWait(context.Background(), job(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.EnqueueWait(ctx, job(2)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	numGoroutines := 10
	numJobs := 100

	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numJobs; j++ {
				if err := q.EnqueueWait(ctx, job(id*numJobs+j)); err != nil {
					t.Errorf("enqueue failed: %v", err)
				}
			}
			done <- true
		}(i)
	}

	consumed := make(chan int, numGoroutines*numJobs)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			for j := range q.Dequeue(ctx) {
				consumed <- j.Seq
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	seen := make(map[int]bool, numGoroutines*numJobs)
	timeout := time.After(2 * time.Second)
	for len(seen) < numGoroutines*numJobs {
		select {
		case seq := <-consumed:
			if seen[seq] {
				t.Fatalf("job %d delivered twice", seq)
			}
			seen[seq] = true
		case <-timeout:
			t.Fatalf("expected %d jobs, consumed %d", numGoroutines*numJobs, len(seen))
		}
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
	_ = q.Close()
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.EnqueueWait(ctx, job(1)); err != nil {
		t.Errorf("expected enqueue to succeed, got %v", err)
	}
	if err := q.EnqueueWait(ctx, job(2)); err != nil {
		t.Errorf("expected enqueue to succeed, got %v", err)
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}

	if err := q.EnqueueWait(ctx, job(3)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Jobs queued before Close are still delivered, then the channel closes.
	var got []int
	timeout := time.After(time.Second)
	out := q.Dequeue(ctx)
	for {
		select {
		case j, ok := <-out:
			if !ok {
				if len(got) != 2 || got[0] != 1 || got[1] != 2 {
					t.Errorf("expected jobs [1 2] to drain, got %v", got)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			got = append(got, j.Seq)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
