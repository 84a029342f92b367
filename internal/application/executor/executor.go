// Package executor offloads fire-and-forget tasks to a bounded worker pool.
package executor

// Executor runs submitted tasks.
type Executor interface {
	Submit(task func())
}

// Pool runs tasks on a fixed set of worker goroutines.
type Pool struct {
	tasks chan func()
}

// NewPool starts a pool with the given worker count and queue depth.
// PRE: workers > 0, queue >= 0
// POST: Workers are running; Submit blocks only when the queue is full
func NewPool(workers, queue int) *Pool {
	p := &Pool{tasks: make(chan func(), queue)}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	for task := range p.tasks {
		task()
	}
}

// Submit enqueues a task for execution.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// Close stops accepting tasks; queued tasks still run.
func (p *Pool) Close() {
	close(p.tasks)
}

// Sync runs tasks inline on the caller's goroutine. Used in tests and
// anywhere deferred execution is undesirable.
type Sync struct{}

// Submit runs the task immediately.
func (Sync) Submit(task func()) {
	task()
}
