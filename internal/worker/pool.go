package worker

import (
	"sync"
	"time"
)

type workerMeta struct {
	id        int
	ch        chan Job
	lastUsed  time.Time
	enqueued  bool // is in the idle queue
	discarded bool // is targeted as delete
}

type jobChannelPool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	idle     []*workerMeta
	metadata map[chan Job]*workerMeta
	min      int
	max      int
	running  int
	nextID   int
	expiry   time.Duration
	closed   bool
	done     chan struct{}
}

const defaultWorkerIdle = 30 * time.Second

func newJobChannelPool(minWorkers, maxWorkers int, idle time.Duration) *jobChannelPool {
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	if minWorkers < 0 {
		minWorkers = 0
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	p := &jobChannelPool{
		metadata: make(map[chan Job]*workerMeta),
		min:      minWorkers,
		max:      maxWorkers,
		expiry:   idle,
		done:     make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.purgeStaleWorkers()
	return p
}

// spawnWorkerLocked registers a new worker; the caller starts it after unlocking.
func (p *jobChannelPool) spawnWorkerLocked() *Worker {
	p.nextID++
	worker := NewWorker(p.nextID, p)
	p.metadata[worker.jobChannel] = &workerMeta{id: worker.id, ch: worker.jobChannel}
	p.running++
	return worker
}

// spawnIdle adds a warm worker straight into the idle queue.
func (p *jobChannelPool) spawnIdle() {
	p.mu.Lock()
	if p.closed || p.running >= p.max {
		p.mu.Unlock()
		return
	}
	worker := p.spawnWorkerLocked()
	p.mu.Unlock()
	worker.Start()
	_ = p.Release(worker.jobChannel)
}

// acquire gets an idle worker or spawns a new one, blocking while the pool is saturated.
// It returns nil once the pool is closed.
func (p *jobChannelPool) acquire() chan Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed {
			return nil
		}
		if meta := p.popIdleLocked(); meta != nil {
			return meta.ch
		}
		if p.running < p.max {
			worker := p.spawnWorkerLocked()
			worker.Start()
			return worker.jobChannel
		}
		p.cond.Wait()
	}
}

// Release puts a worker back into the idle queue. It reports false when the
// worker should exit instead.
func (p *jobChannelPool) Release(ch chan Job) bool {
	p.mu.Lock()
	meta, ok := p.metadata[ch]
	if !ok || meta.discarded || p.closed {
		p.mu.Unlock()
		return false
	}
	if meta.enqueued {
		p.mu.Unlock()
		return true
	}
	meta.enqueued = true
	meta.lastUsed = time.Now()
	p.idle = append(p.idle, meta)
	p.mu.Unlock()
	p.cond.Signal()
	return true
}

func (p *jobChannelPool) retire(ch chan Job) {
	p.mu.Lock()
	if meta, ok := p.metadata[ch]; ok {
		delete(p.metadata, ch)
		meta.discarded = true
		if p.running > 0 {
			p.running--
		}
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *jobChannelPool) workerID(ch chan Job) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if meta, ok := p.metadata[ch]; ok {
		return meta.id
	}
	return 0
}

func (p *jobChannelPool) popIdleLocked() *workerMeta {
	for len(p.idle) > 0 {
		meta := p.idle[0]
		p.idle = p.idle[1:]
		if meta.discarded {
			continue
		}
		meta.enqueued = false
		return meta
	}
	return nil
}

func (p *jobChannelPool) size() (running, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running, len(p.idle)
}

func (p *jobChannelPool) purgeStaleWorkers() {
	ticker := time.NewTicker(p.expiry)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.shutdownExpired()
		case <-p.done:
			return
		}
	}
}

// shutdownExpired retires idle workers past expiry, keeping at least min alive.
func (p *jobChannelPool) shutdownExpired() {
	var stale []*workerMeta
	now := time.Now()

	p.mu.Lock()
	if len(p.idle) == 0 || p.running <= p.min {
		p.mu.Unlock()
		return
	}
	remaining := p.idle[:0]
	for _, meta := range p.idle {
		if meta.discarded {
			continue
		}
		if now.Sub(meta.lastUsed) >= p.expiry && p.running-len(stale) > p.min {
			meta.discarded = true
			meta.enqueued = false
			stale = append(stale, meta)
			continue
		}
		remaining = append(remaining, meta)
	}
	p.idle = remaining
	p.mu.Unlock()

	for _, meta := range stale {
		meta.ch <- Job{Type: Stop}
	}
}

// close stops idle workers and wakes any acquire waiters. Busy workers exit
// after their current job because Release refuses them.
func (p *jobChannelPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	idle := p.idle
	p.idle = nil
	for _, meta := range idle {
		meta.discarded = true
	}
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, meta := range idle {
		meta.ch <- Job{Type: Stop}
	}
}
