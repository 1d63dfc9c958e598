package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Task is a unit of detached background work.
type Task func(ctx context.Context) error

// ExecutorConfig sizes an Executor.
type ExecutorConfig struct {
	Workers   int
	QueueSize int
}

type namedTask struct {
	name string
	run  Task
}

// Executor runs detached tasks on a fixed worker pool. Callers never wait
// for a submitted task; failures go to the logger sink and the Failed
// counter.
type Executor struct {
	cfg       ExecutorConfig
	log       zerolog.Logger
	ch        chan namedTask
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	completed atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewExecutor starts cfg.Workers workers.
func NewExecutor(cfg ExecutorConfig, log zerolog.Logger) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		cfg:    cfg,
		log:    log.With().Str("component", "revalidate").Logger(),
		ch:     make(chan namedTask, cfg.QueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	e.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go e.run()
	}
	return e
}

func (e *Executor) run() {
	defer e.wg.Done()

	for {
		select {
		case t := <-e.ch:
			e.exec(t)
		case <-e.done:
			for {
				select {
				case t := <-e.ch:
					e.exec(t)
				default:
					return
				}
			}
		}
	}
}

func (e *Executor) exec(t namedTask) {
	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			e.log.Error().Str("task", t.name).Interface("panic", r).Msg("background task panicked")
		}
	}()
	if err := t.run(e.ctx); err != nil {
		e.failed.Add(1)
		e.log.Warn().Err(err).Str("task", t.name).Msg("background task failed")
		return
	}
	e.completed.Add(1)
}

// Submit queues task without waiting. It reports false when the executor is
// closed or the queue is full; a full queue drops the task.
func (e *Executor) Submit(name string, task Task) bool {
	if e == nil || e.closed.Load() {
		return false
	}

	select {
	case e.ch <- namedTask{name: name, run: task}:
		return true
	case <-e.done:
		return false
	default:
		e.dropped.Add(1)
		e.log.Debug().Str("task", name).Msg("background queue full, task dropped")
		return false
	}
}

// Close stops accepting tasks, drains the queue and waits for workers.
func (e *Executor) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
		e.wg.Wait()
		e.cancel()
	})
}

// Dropped returns how many tasks were rejected because the queue was full.
func (e *Executor) Dropped() uint64 {
	if e == nil {
		return 0
	}
	return e.dropped.Load()
}

// Failed returns how many tasks returned an error or panicked.
func (e *Executor) Failed() uint64 {
	if e == nil {
		return 0
	}
	return e.failed.Load()
}

// Completed returns how many tasks finished without error.
func (e *Executor) Completed() uint64 {
	if e == nil {
		return 0
	}
	return e.completed.Load()
}
