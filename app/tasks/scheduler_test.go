package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/bruinbrief/app/cache"
	"github.com/lysyi3m/bruinbrief/app/pipeline"
)

type MockRunner struct {
	mu       sync.Mutex
	results  []pipeline.Result
	calls    int
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
}

var _ Runner = (*MockRunner)(nil)

func (m *MockRunner) Run(ctx context.Context) pipeline.Result {
	if m.inFlight.Add(1) > 1 {
		m.overlap.Store(true)
	}
	defer m.inFlight.Add(-1)

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.calls
	m.calls++
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	return m.results[idx]
}

func (m *MockRunner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type MockCache struct {
	cache.NoopCache
	invalidations atomic.Int32
}

func (m *MockCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.invalidations.Add(1)
	return 3, nil
}

var (
	okResult     = pipeline.Result{Success: true, Message: "Generated 1 articles from 2 posts", ArticlesGenerated: 1, State: pipeline.StateDone}
	emptyResult  = pipeline.Result{Success: true, Message: "No new posts to process", State: pipeline.StateDone}
	failedResult = pipeline.Result{Success: false, Message: "Pipeline failed", Error: "boom", State: pipeline.StateFailed}
)

func newTestScheduler(t *testing.T, runner Runner, c cache.Cache, schedule string, retries int) *Scheduler {
	t.Helper()

	s, err := NewScheduler(runner, c, schedule, time.UTC, retries)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	s.Start()
	t.Cleanup(s.Stop)
	return s
}

func TestTriggerRunReturnsResult(t *testing.T) {
	runner := &MockRunner{results: []pipeline.Result{okResult}}
	mockCache := &MockCache{}
	s := newTestScheduler(t, runner, mockCache, "", 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := s.TriggerRun(ctx)
	if err != nil {
		t.Fatalf("TriggerRun failed: %v", err)
	}
	if !res.Success || res.ArticlesGenerated != 1 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if mockCache.invalidations.Load() != 1 {
		t.Errorf("Expected cache invalidation after persisted run, got %d", mockCache.invalidations.Load())
	}

	status := s.Status()
	if status.LastResult == nil || status.LastResult.Message != okResult.Message {
		t.Errorf("Expected last result in status, got %+v", status.LastResult)
	}
}

func TestTriggerRunDoesNotInvalidateWithoutContent(t *testing.T) {
	runner := &MockRunner{results: []pipeline.Result{emptyResult}}
	mockCache := &MockCache{}
	s := newTestScheduler(t, runner, mockCache, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.TriggerRun(ctx); err != nil {
		t.Fatalf("TriggerRun failed: %v", err)
	}
	if mockCache.invalidations.Load() != 0 {
		t.Errorf("Expected no invalidation, got %d", mockCache.invalidations.Load())
	}
}

func TestRunPipelineTaskInvalidatesCacheWithoutSummary(t *testing.T) {
	tests := []struct {
		name     string
		result   pipeline.Result
		expected int32
	}{
		{
			name: "articles without summary",
			result: pipeline.Result{
				Success:           true,
				State:             pipeline.StateDone,
				ArticlesGenerated: 1,
				Articles:          []pipeline.ArticleRef{{ID: "a1", Headline: "Powell Cat Is Back", PostCount: 1}},
			},
			expected: 1,
		},
		{
			name: "article refs without count",
			result: pipeline.Result{
				Success:  true,
				State:    pipeline.StateDone,
				Articles: []pipeline.ArticleRef{{ID: "a1"}},
			},
			expected: 1,
		},
		{name: "nothing saved", result: emptyResult, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCache := &MockCache{}
			task := NewRunPipelineTask(TriggerManual, &MockRunner{results: []pipeline.Result{tt.result}}, mockCache, 0)

			if err := task.Execute(context.Background()); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if got := mockCache.invalidations.Load(); got != tt.expected {
				t.Errorf("Expected %d invalidations, got %d", tt.expected, got)
			}
		})
	}
}

func TestManualRunsAreNotRetried(t *testing.T) {
	runner := &MockRunner{results: []pipeline.Result{failedResult}}
	s := newTestScheduler(t, runner, nil, "", 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := s.TriggerRun(ctx)
	if err != nil {
		t.Fatalf("TriggerRun failed: %v", err)
	}
	if res.Success || res.Error != "boom" {
		t.Errorf("Expected failed result, got %+v", res)
	}
	if runner.Calls() != 1 {
		t.Errorf("Expected 1 call, got %d", runner.Calls())
	}
}

func TestScheduledRunRetriesFailures(t *testing.T) {
	runner := &MockRunner{results: []pipeline.Result{failedResult, okResult}}
	s := newTestScheduler(t, runner, nil, "", 2)

	task := NewRunPipelineTask(TriggerCron, runner, nil, 2)
	if err := s.EnqueueTask(task); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}

	select {
	case res := <-task.Done():
		if !res.Success {
			t.Errorf("Expected retry to succeed, got %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for retried task")
	}

	if runner.Calls() != 2 {
		t.Errorf("Expected 2 calls, got %d", runner.Calls())
	}
	if task.GetRetryCount() != 1 {
		t.Errorf("Expected retry count 1, got %d", task.GetRetryCount())
	}
}

func TestRunsAreSerialized(t *testing.T) {
	runner := &MockRunner{results: []pipeline.Result{emptyResult}, delay: 20 * time.Millisecond}
	s := newTestScheduler(t, runner, nil, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.TriggerRun(ctx); err != nil {
				t.Errorf("TriggerRun failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if runner.Calls() != 4 {
		t.Errorf("Expected 4 runs, got %d", runner.Calls())
	}
	if runner.overlap.Load() {
		t.Error("Expected runs never to overlap")
	}
}

func TestScheduledRunSkippedWhilePending(t *testing.T) {
	runner := &MockRunner{results: []pipeline.Result{emptyResult}, delay: 200 * time.Millisecond}
	s := newTestScheduler(t, runner, nil, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.TriggerRun(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Status().Running && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.enqueueScheduledRun()
	<-done

	if runner.Calls() != 1 {
		t.Errorf("Expected scheduled run to be skipped, got %d calls", runner.Calls())
	}
}

func TestNewSchedulerRejectsInvalidSchedule(t *testing.T) {
	if _, err := NewScheduler(&MockRunner{}, nil, "every day", time.UTC, 0); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestStatusReportsNextRun(t *testing.T) {
	s := newTestScheduler(t, &MockRunner{results: []pipeline.Result{emptyResult}}, nil, "0 */6 * * *", 0)

	status := s.Status()
	if status.Schedule != "0 */6 * * *" {
		t.Errorf("Unexpected schedule: %s", status.Schedule)
	}
	if status.NextRun == nil || !status.NextRun.After(time.Now()) {
		t.Errorf("Expected future next run, got %v", status.NextRun)
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	s, err := NewScheduler(&MockRunner{results: []pipeline.Result{emptyResult}}, nil, "", time.UTC, 0)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	s.Stop()

	if err := s.EnqueueTask(NewRunPipelineTask(TriggerManual, &MockRunner{}, nil, 0)); err == nil {
		t.Error("Expected error enqueueing after stop")
	}
}

func TestTaskRetryBookkeeping(t *testing.T) {
	task := NewTask(TaskTypeRunPipeline, TriggerCron, 2)

	if task.ID == "" || task.GetType() != TaskTypeRunPipeline || task.GetTrigger() != TriggerCron {
		t.Errorf("Unexpected task: %+v", task)
	}
	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}

	for i := 0; i < 2; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i+1)
		}
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected retries to be exhausted")
	}

	if NewTask(TaskTypeRunPipeline, TriggerManual, -1).MaxRetries != 0 {
		t.Error("Expected negative retries to clamp to zero")
	}
}
