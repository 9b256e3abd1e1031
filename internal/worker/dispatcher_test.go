package worker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcherRunsJobsInOrderPerKey(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10})
	defer d.Stop()

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		if err := d.Submit("session-a", func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	waitTimeout(t, &wg)

	for i, v := range got {
		if v != i {
			t.Fatalf("jobs ran out of order: %v", got)
		}
	}
}

func TestDispatcherReportsBusyQueue(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 1})
	defer d.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	if err := d.Submit("a", func() { close(started); <-release }); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	<-started

	// The dispatcher loop holds one job waiting for the only worker and the
	// channel holds one more, so a third submission must be refused.
	var busy bool
	for i := 0; i < 5; i++ {
		if err := d.Submit("a", func() {}); errors.Is(err, ErrDispatcherBusy) {
			busy = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	close(release)
	if !busy {
		t.Fatalf("expected ErrDispatcherBusy once the queue filled")
	}
}

func TestDispatcherRotatesBetweenKeys(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10})
	defer d.Stop()

	gate := make(chan struct{})
	started := make(chan struct{})
	if err := d.Submit("warmup", func() { close(started); <-gate }); err != nil {
		t.Fatalf("submit warmup: %v", err)
	}
	<-started

	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	record := func(key string) func() {
		wg.Add(1)
		return func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, key)
			mu.Unlock()
		}
	}
	for _, key := range []string{"a", "a", "a", "b"} {
		if err := d.Submit(key, record(key)); err != nil {
			t.Fatalf("submit %s: %v", key, err)
		}
	}
	// Let the dispatcher drain the intake channel into per-key queues.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	waitTimeout(t, &wg)

	if len(order) != 4 {
		t.Fatalf("expected 4 jobs, got %v", order)
	}
	bIndex := -1
	for i, k := range order {
		if k == "b" {
			bIndex = i
		}
	}
	if bIndex < 0 || bIndex > 2 {
		t.Fatalf("key b should not wait behind every job of key a: %v", order)
	}
}

func TestDispatcherSurvivesPanickingJob(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 1, QueueSize: 4})
	defer d.Stop()

	if err := d.Submit("a", func() { panic("boom") }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	done := make(chan struct{})
	if err := d.Submit("a", func() { close(done) }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not recover from panic")
	}
}

func TestDispatcherStopRejectsSubmissions(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{MinWorkers: 1, MaxWorkers: 2, QueueSize: 4})
	d.Stop()
	d.Stop()
	if err := d.Submit("a", func() {}); !errors.Is(err, ErrDispatcherStopped) {
		t.Fatalf("expected ErrDispatcherStopped, got %v", err)
	}
}

func TestPoolRetiresIdleWorkersAboveMin(t *testing.T) {
	p := newJobChannelPool(1, 3, 20*time.Millisecond)
	defer p.close()

	chans := []chan Job{p.acquire(), p.acquire(), p.acquire()}
	for _, ch := range chans {
		p.Release(ch)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if running, _ := p.size(); running == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	running, _ := p.size()
	t.Fatalf("expected pool to shrink to 1 worker, have %d", running)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for jobs")
	}
}
