// Package pool provides a fixed-size worker pool that runs independent jobs and collects
// their optional results.
//
// Lifecycle:
//
//	p, _ := pool.New[R](size)
//	p.Submit(job) // any number of times
//	p.Stop()      // queues one terminate message per worker behind the jobs
//	res := p.JoinAll()
//
// Every submitted job is handed to exactly one worker. Each worker keeps its results in a
// private slice; JoinAll concatenates them once all workers have exited.
package pool

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// Errors
var (
	// ErrInvalidSize is returned by New when the worker count is not positive.
	ErrInvalidSize = errors.New("pool: size must be greater than zero")
	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("pool: pool is stopped")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from pool operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Job is one unit of work. Run returns ok=false when the job produced nothing.
type Job[R any] interface {
	Run() (result R, ok bool)
}

// JobFunc adapts a function to Job.
type JobFunc[R any] func() (R, bool)

// Run calls f.
func (f JobFunc[R]) Run() (R, bool) {
	return f()
}

// message is a queue entry: either a job or a terminate instruction.
type message[R any] struct {
	job       Job[R]
	terminate bool
}

// queue is an unbounded FIFO guarded by a mutex. pop blocks until an entry is available.
type queue[R any] struct {
	mu    sync.Mutex
	ready *sync.Cond
	items []message[R]
}

func newQueue[R any]() *queue[R] {
	q := &queue[R]{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

func (q *queue[R]) push(m message[R]) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	q.ready.Signal()
}

func (q *queue[R]) pop() message[R] {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.ready.Wait()
	}
	m := q.items[0]
	q.items[0] = message[R]{}
	q.items = q.items[1:]
	return m
}

func (q *queue[R]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type state int

const (
	stateOpen state = iota
	stateDraining
	stateClosed
)

// worker owns one goroutine and its private result slice. results is only read after done
// is closed.
type worker[R any] struct {
	id      int
	results []R
	done    chan struct{}
}

// Pool is a fixed set of workers sharing one job queue.
type Pool[R any] struct {
	name    string
	queue   *queue[R]
	workers []*worker[R]

	mu    sync.Mutex
	state state
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	name string
}

// WithName labels debug messages from this pool.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// New starts size workers. It returns ErrInvalidSize if size <= 0.
func New[R any](size int, opts ...Option) (*Pool[R], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	o := options{name: "pool"}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[R]{
		name:    o.name,
		queue:   newQueue[R](),
		workers: make([]*worker[R], size),
	}
	for i := range p.workers {
		w := &worker[R]{id: i, done: make(chan struct{})}
		p.workers[i] = w
		go p.run(w)
	}
	debugLog("%s: started %d workers", p.name, size)
	return p, nil
}

// Size returns the number of workers.
func (p *Pool[R]) Size() int {
	return len(p.workers)
}

// Pending returns the number of queued entries not yet taken by a worker, terminate
// messages included.
func (p *Pool[R]) Pending() int {
	return p.queue.len()
}

// Submit queues job for execution by the next idle worker. It never blocks on workers and
// never drops a job; it fails only after Stop.
func (p *Pool[R]) Submit(job Job[R]) error {
	if job == nil {
		return errors.New("pool: nil job")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateOpen {
		return ErrPoolStopped
	}
	p.queue.push(message[R]{job: job})
	return nil
}

// Stop announces that no more jobs will be submitted. Jobs already queued still run. Each
// worker exits after taking its terminate message. Stop is idempotent.
func (p *Pool[R]) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != stateOpen {
		return
	}
	p.state = stateDraining
	for range p.workers {
		p.queue.push(message[R]{terminate: true})
	}
	debugLog("%s: stop requested, %d entries queued", p.name, p.queue.len())
}

// JoinAll stops the pool if needed, waits until every worker has exited and returns all
// collected results in no particular order. After the first call the pool is inert and
// JoinAll returns nil.
func (p *Pool[R]) JoinAll() []R {
	p.Stop()

	p.mu.Lock()
	if p.state == stateClosed {
		p.mu.Unlock()
		return nil
	}
	p.state = stateClosed
	p.mu.Unlock()

	total := 0
	for _, w := range p.workers {
		<-w.done
		total += len(w.results)
	}
	out := make([]R, 0, total)
	for _, w := range p.workers {
		out = append(out, w.results...)
		w.results = nil
	}
	debugLog("%s: joined %d workers, %d results", p.name, len(p.workers), total)
	return out
}

func (p *Pool[R]) run(w *worker[R]) {
	defer close(w.done)
	for {
		m := p.queue.pop()
		if m.terminate {
			return
		}
		if r, ok := p.execute(w, m.job); ok {
			w.results = append(w.results, r)
		}
	}
}

// execute runs one job. A panicking job yields no result and leaves the worker running.
func (p *Pool[R]) execute(w *worker[R], job Job[R]) (result R, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			debugLog("%s: worker %d recovered from panic: %v\n%s", p.name, w.id, rec, debug.Stack())
			var zero R
			result, ok = zero, false
		}
	}()
	return job.Run()
}
