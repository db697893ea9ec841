package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/bruinbrief/app/cache"
	"github.com/lysyi3m/bruinbrief/app/pipeline"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	DefaultTaskTimeout = 15 * time.Minute
	queueSize          = 16
)

// Scheduler serializes pipeline runs through a single worker so that cron and
// manual triggers never race on the checkpoint.
type Scheduler struct {
	runner      Runner
	cache       cache.Cache
	cron        *cron.Cron
	schedule    string
	entryID     cron.EntryID
	runRetries  int
	taskTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	running atomic.Bool
	pending atomic.Int32

	mu         sync.RWMutex
	lastResult *pipeline.Result
	lastRunAt  *time.Time
}

func NewScheduler(runner Runner, c cache.Cache, schedule string, loc *time.Location, runRetries int) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		runner:      runner,
		cache:       c,
		cron:        cron.New(cron.WithLocation(loc)),
		schedule:    schedule,
		runRetries:  runRetries,
		taskTimeout: DefaultTaskTimeout,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}

	if schedule != "" {
		entryID, err := s.cron.AddFunc(schedule, s.enqueueScheduledRun)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}
		s.entryID = entryID
	}

	return s, nil
}

// WithTaskTimeout bounds a single task attempt
func (s *Scheduler) WithTaskTimeout(timeout time.Duration) *Scheduler {
	s.taskTimeout = timeout
	return s
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	s.cron.Start()

	if s.schedule != "" {
		slog.Info("Scheduler started", "schedule", s.schedule, "next_run", s.cron.Entry(s.entryID).Next)
	} else {
		slog.Info("Scheduler started without schedule")
	}
}

// Stop waits for the task in progress to finish
func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	s.pending.Add(1)

	select {
	case <-s.ctx.Done():
		s.pending.Add(-1)
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		s.pending.Add(-1)
		return s.ctx.Err()
	default:
		s.pending.Add(-1)
		return fmt.Errorf("task queue is full")
	}
}

// TriggerRun queues a manual run and waits for its result. Manual runs are not retried.
func (s *Scheduler) TriggerRun(ctx context.Context) (pipeline.Result, error) {
	task := NewRunPipelineTask(TriggerManual, s.runner, s.cache, 0)
	if err := s.EnqueueTask(task); err != nil {
		return pipeline.Result{}, fmt.Errorf("failed to enqueue run: %w", err)
	}

	select {
	case res := <-task.Done():
		return res, nil
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}
}

// EnqueueStartupRun queues a run without waiting for it
func (s *Scheduler) EnqueueStartupRun() error {
	return s.EnqueueTask(NewRunPipelineTask(TriggerStartup, s.runner, s.cache, s.runRetries))
}

func (s *Scheduler) Status() Status {
	status := Status{
		Running:  s.running.Load(),
		Pending:  int(s.pending.Load()),
		Schedule: s.schedule,
	}

	if s.schedule != "" {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}

	s.mu.RLock()
	status.LastResult = s.lastResult
	status.LastRunAt = s.lastRunAt
	s.mu.RUnlock()

	return status
}

func (s *Scheduler) enqueueScheduledRun() {
	if s.pending.Load() > 0 {
		slog.Info("Pipeline run already pending, skipping scheduled run")
		return
	}

	task := NewRunPipelineTask(TriggerCron, s.runner, s.cache, s.runRetries)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue scheduled run", "error", err)
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	s.running.Store(true)
	defer s.running.Store(false)
	defer s.pending.Add(-1)

	task.Start()

	// A run that has started finishes even when the scheduler is stopping.
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	s.recordResult(task)

	if err == nil {
		s.complete(task)
		return
	}

	slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "trigger", string(task.GetTrigger()), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		s.complete(task)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.pending.Add(1)
	go func() {
		defer s.pending.Add(-1)

		select {
		case <-time.After(retryDelay):
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.complete(task)
			return
		}

		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			s.complete(task)
		}
	}()
}

func (s *Scheduler) recordResult(task TaskInterface) {
	runTask, ok := task.(*RunPipelineTask)
	if !ok {
		return
	}

	res := runTask.Result()
	now := time.Now()

	s.mu.Lock()
	s.lastResult = &res
	s.lastRunAt = &now
	s.mu.Unlock()
}

func (s *Scheduler) complete(task TaskInterface) {
	if c, ok := task.(completer); ok {
		c.Complete()
	}
}
