package worker

import (
	"log"
	"runtime/debug"
)

type jobKind int

const (
	Run jobKind = iota
	Stop
)

func (k jobKind) String() string {
	if k == Stop {
		return "stop"
	}
	return "run"
}

// Job is one unit of work. Jobs sharing a Key are run in submission order
// and take turns with other keys.
type Job struct {
	Type jobKind
	Key  string
	Fn   func()
}

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		defer w.pool.retire(w.jobChannel)
		for job := range w.jobChannel {
			if job.Type == Stop {
				debugLog("[worker-%d] stopping", w.id)
				return
			}
			w.execute(job)
			if !w.pool.Release(w.jobChannel) {
				return
			}
		}
	}()
}

func (w *Worker) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker-%d: job for %q panicked: %v\n%s", w.id, job.Key, r, debug.Stack())
		}
	}()
	if job.Fn != nil {
		job.Fn()
	}
}
