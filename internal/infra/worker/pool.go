package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"finance-copilot/internal/infra/metrics"
)

// ErrQueueFull is returned by Submit when every queue slot is taken.
var ErrQueueFull = errors.New("worker queue full")

// Task is one unit of background work; name labels its metrics.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs submitted tasks on a fixed number of goroutines. Submissions
// never block: a saturated queue rejects the task.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	once sync.Once
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncJob(task.Name, "failed")
			p.log.Error().Int("worker", id).Str("task", task.Name).Interface("panic", rec).Msg("task panicked")
		}
	}()
	if err := task.Run(ctx); err != nil {
		metrics.IncJob(task.Name, "failed")
		p.log.Warn().Err(err).Int("worker", id).Str("task", task.Name).Msg("task failed")
		return
	}
	metrics.IncJob(task.Name, "ok")
}

// Stop signals the workers and waits for in-flight tasks. Queued tasks that
// have not started are dropped.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		metrics.IncJob(task.Name, "dropped")
		return ErrQueueFull
	}
}
