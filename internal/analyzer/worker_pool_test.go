package analyzer

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPool_RunsEveryJob(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Close()

	var mu sync.Mutex
	seen := make(map[int]bool)

	for i := 0; i < 20; i++ {
		i := i
		if !pool.Submit(func() {
			mu.Lock()
			seen[i] = true
			mu.Unlock()
		}) {
			t.Fatalf("Submit %d rejected on an open pool", i)
		}
	}

	pool.Wait()

	if len(seen) != 20 {
		t.Errorf("Expected 20 jobs to run, got %d", len(seen))
	}
}

func TestWorkerPool_DefaultsToCPUCount(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool.workers < 1 {
		t.Errorf("Expected at least one worker, got %d", pool.workers)
	}
}

func TestWorkerPool_StartIsIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Start()
	defer pool.Close()

	var ran atomic.Bool
	pool.Submit(func() { ran.Store(true) })
	pool.Wait()

	if !ran.Load() {
		t.Error("Expected job to run after repeated Start")
	}
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Close()
	pool.Close()

	if pool.Submit(func() {}) {
		t.Error("Expected Submit to be rejected after Close")
	}
	if stats := pool.GetStats(); stats.TotalJobs != 0 {
		t.Errorf("Rejected job should not be counted, got %d", stats.TotalJobs)
	}
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Close()

	var ran atomic.Bool
	pool.Submit(func() { panic("broken job") })
	pool.Submit(func() { ran.Store(true) })
	pool.Wait()

	if !ran.Load() {
		t.Error("Expected the single worker to survive a panicking job")
	}
	if stats := pool.GetStats(); stats.CompletedJobs != 2 {
		t.Errorf("Expected 2 completed jobs, got %d", stats.CompletedJobs)
	}
}

func TestWorkerPool_Stats(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Close()

	const numJobs = 25
	var wg sync.WaitGroup

	for i := 0; i < numJobs; i++ {
		pool.Submit(func() {
			sum := 0
			for j := 0; j < 2000; j++ {
				sum += j
			}
			_ = sum
		})
	}

	// Stats may be read while jobs are in flight.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = pool.GetStats()
			}
		}()
	}
	wg.Wait()
	pool.Wait()

	stats := pool.GetStats()
	if stats.TotalJobs != numJobs || stats.CompletedJobs != numJobs {
		t.Errorf("Expected %d total and completed jobs, got %+v", numJobs, stats)
	}
	if stats.ActiveWorkers != 0 {
		t.Errorf("Expected no active workers after Wait, got %d", stats.ActiveWorkers)
	}
}
