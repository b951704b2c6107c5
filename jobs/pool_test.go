package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_RunsAllJobs(t *testing.T) {
	p := NewPool(2)
	var n atomic.Int32
	for i := 0; i < 20; i++ {
		p.Submit(func(ctx context.Context) {
			n.Add(1)
		})
	}
	p.Wait()
	if got := n.Load(); got != 20 {
		t.Fatalf("ran %d jobs, want 20", got)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var cur, peak, starts atomic.Int32
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	for i := 0; i < 6; i++ {
		p.Submit(func(ctx context.Context) {
			v := cur.Add(1)
			for {
				old := peak.Load()
				if v <= old || peak.CompareAndSwap(old, v) {
					break
				}
			}
			if starts.Add(1) <= 2 {
				started.Done()
			}
			<-release
			cur.Add(-1)
		})
	}
	started.Wait()
	time.Sleep(10 * time.Millisecond)
	if got := p.Active(); got != 2 {
		t.Errorf("Active = %d, want 2", got)
	}
	close(release)
	p.Wait()
	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency %d, want <= 2", got)
	}
}

func TestPool_SubmitDoesNotBlock(t *testing.T) {
	p := NewPool(1)
	block := make(chan struct{})
	p.Submit(func(ctx context.Context) { <-block })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Submit(func(ctx context.Context) {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked while pool was full")
	}
	close(block)
	p.Wait()
}

func TestPool_CloseCancelsContext(t *testing.T) {
	p := NewPool(1)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var cancelled atomic.Bool
	p.Submit(func(ctx context.Context) {
		cancelled.Store(ctx.Err() != nil)
	})
	p.Wait()
	if !cancelled.Load() {
		t.Fatal("job after Close should see a cancelled context")
	}
}

func TestManual_Order(t *testing.T) {
	m := NewManual()
	var order []int
	for i := 0; i < 3; i++ {
		m.Submit(func(ctx context.Context) { order = append(order, i) })
	}
	if m.Pending() != 3 {
		t.Fatalf("Pending = %d, want 3", m.Pending())
	}
	if !m.RunLast() {
		t.Fatal("RunLast returned false")
	}
	if n := m.RunAll(); n != 2 {
		t.Fatalf("RunAll ran %d, want 2", n)
	}
	want := []int{2, 0, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if m.RunNext() {
		t.Fatal("RunNext on empty queue returned true")
	}
}

func TestManual_RunAllIncludesNested(t *testing.T) {
	m := NewManual()
	ran := 0
	m.Submit(func(ctx context.Context) {
		ran++
		m.Submit(func(ctx context.Context) { ran++ })
	})
	if n := m.RunAll(); n != 2 || ran != 2 {
		t.Fatalf("RunAll = %d, ran = %d, want 2", n, ran)
	}
}
