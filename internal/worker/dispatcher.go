// Package worker runs background jobs on an elastic pool of goroutines,
// rotating fairly between job keys so one busy conversation cannot starve
// the others.
package worker

import (
	"container/list"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrDispatcherBusy is returned when the job queue is full.
	ErrDispatcherBusy = errors.New("dispatcher queue is full")
	// ErrDispatcherStopped is returned for submissions after Stop.
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
)

type DispatcherConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
}

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // intake for outer jobs

	mu        sync.Mutex
	queues    map[string]*keyQueue // pending jobs per key
	ready     *list.List           // LRU queue of keys with pending jobs
	positions map[string]*list.Element

	stopped  atomic.Bool
	quit     chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	pool := newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout)
	d := &Dispatcher{
		pool:      pool,
		JobQueue:  make(chan Job, cfg.QueueSize),
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		quit:      make(chan struct{}),
	}

	for i := 0; i < cfg.MinWorkers; i++ {
		d.pool.spawnIdle()
	}

	go d.run()
	return d
}

// Submit queues fn under key without blocking.
func (d *Dispatcher) Submit(key string, fn func()) error {
	if d.stopped.Load() {
		return ErrDispatcherStopped
	}
	select {
	case d.JobQueue <- Job{Type: Run, Key: key, Fn: fn}:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

// Stop halts dispatching. Jobs already handed to a worker finish; queued jobs are dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.quit)
		d.pool.close()
	})
}

func (d *Dispatcher) run() {
	for {
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue:
				d.enqueueJob(job)
			case <-d.quit:
				return
			}
			continue
		}
		if !d.drain() {
			return
		}
	}
}

// drain moves everything waiting in JobQueue into the per-key queues so the
// next dispatch sees every key. It reports false once the dispatcher stops.
func (d *Dispatcher) drain() bool {
	for {
		select {
		case job := <-d.JobQueue:
			d.enqueueJob(job)
		case <-d.quit:
			return false
		default:
			return true
		}
	}
}

// CancelKey drops every job still pending for key.
func (d *Dispatcher) CancelKey(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.queues, key)
	if elem, ok := d.positions[key]; ok {
		d.ready.Remove(elem)
		delete(d.positions, key)
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// dispatchOne hands the next job of the front key to a worker.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	if workerChan == nil {
		debugLog("[dispatcher] pool closed, dropping job for %q", key)
		return true
	}
	debugLog("[dispatcher] assign job %s for %q to worker-%d", job.Type, key, d.pool.workerID(workerChan))
	workerChan <- job
	return true
}
