package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrExecutorStopped = errors.New("executor stopped")

type Task func()

// SerialExecutor runs submitted tasks one at a time, in submission order, on
// a single worker goroutine. The queue is unbounded and Submit never blocks.
//
// The registry and every negotiator it owns are confined to this worker: a
// task may touch them freely, code on any other goroutine must submit a task
// instead. Tasks must not block; work that has to wait on the media engine
// finishes by submitting a follow-up task.
type SerialExecutor struct {
	mu      sync.Mutex
	tasks   []Task
	stopped bool
	started bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	stopOnce sync.Once
}

func NewSerialExecutor() *SerialExecutor {
	return &SerialExecutor{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once has no effect.
func (e *SerialExecutor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.stopped {
		return
	}
	e.started = true
	go e.run()
}

// Submit appends task to the queue and returns immediately.
func (e *SerialExecutor) Submit(task Task) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrExecutorStopped
	}
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Do submits task and waits until it has run or ctx is done. It must not be
// called from a task: the worker would wait on itself.
func (e *SerialExecutor) Do(ctx context.Context, task Task) error {
	finished := make(chan struct{})
	if err := e.Submit(func() {
		defer close(finished)
		task()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrExecutorStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses new tasks, runs whatever is already queued and waits for the
// worker to exit. It must not be called from a task.
func (e *SerialExecutor) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		started := e.started
		e.mu.Unlock()

		close(e.quit)
		if !started {
			go e.run()
		}
	})
	<-e.done
}

func (e *SerialExecutor) run() {
	defer close(e.done)
	for {
		if task, ok := e.next(); ok {
			e.execute(task)
			continue
		}

		select {
		case <-e.wake:
		case <-e.quit:
			for {
				task, ok := e.next()
				if !ok {
					log.Debug().Msg("Executor stopped")
					return
				}
				e.execute(task)
			}
		}
	}
}

func (e *SerialExecutor) next() (Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.tasks) == 0 {
		return nil, false
	}
	task := e.tasks[0]
	e.tasks[0] = nil
	e.tasks = e.tasks[1:]
	return task, true
}

func (e *SerialExecutor) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered panic in executor task")
		}
	}()
	task()
}
