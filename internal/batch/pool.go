// Package batch provides a fixed-size worker pool with a join barrier:
// fan out independent work units, wait for every submitted unit to finish
// or fail, and collect results keyed by unit ID. One failing unit never
// aborts the batch; its error is captured in its result.
package batch

import (
	"context"
	"sync"
)

// Task is a unit of work to be processed by the pool.
type Task interface {
	Execute(ctx context.Context) (interface{}, error)
	ID() string
}

// Result holds the outcome of one task, value or error.
type Result struct {
	TaskID string
	Value  interface{}
	Err    error
}

// Pool runs queued tasks on a bounded number of workers.
type Pool struct {
	tasks      []Task
	maxWorkers int
	mu         sync.Mutex
}

// NewPool creates a pool with the given worker bound.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{maxWorkers: maxWorkers}
}

// Add queues a task for the next ProcessAll call.
func (p *Pool) Add(task Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
}

// ProcessAll runs every queued task, never exceeding the worker bound,
// and returns once all of them have completed or failed. Results are
// keyed by task ID; each submitted task appears exactly once.
func (p *Pool) ProcessAll(ctx context.Context) map[string]*Result {
	p.mu.Lock()
	tasks := make([]Task, len(p.tasks))
	copy(tasks, p.tasks)
	p.tasks = nil
	p.mu.Unlock()

	if len(tasks) == 0 {
		return map[string]*Result{}
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan *Result, len(tasks))

	workerCount := p.maxWorkers
	if workerCount > len(tasks) {
		workerCount = len(tasks)
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				value, err := task.Execute(ctx)
				resultCh <- &Result{TaskID: task.ID(), Value: value, Err: err}
			}
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make(map[string]*Result, len(tasks))
	for result := range resultCh {
		results[result.TaskID] = result
	}

	return results
}
