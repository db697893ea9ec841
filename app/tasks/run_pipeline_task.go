package tasks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lysyi3m/bruinbrief/app/cache"
	"github.com/lysyi3m/bruinbrief/app/pipeline"
)

type RunPipelineTask struct {
	Task
	runner Runner
	cache  cache.Cache
	result pipeline.Result
	done   chan pipeline.Result
}

func NewRunPipelineTask(trigger Trigger, runner Runner, c cache.Cache, maxRetries int) *RunPipelineTask {
	if c == nil {
		c = cache.NoopCache{}
	}

	return &RunPipelineTask{
		Task:   NewTask(TaskTypeRunPipeline, trigger, maxRetries),
		runner: runner,
		cache:  c,
		done:   make(chan pipeline.Result, 1),
	}
}

func (t *RunPipelineTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.result = t.runner.Run(ctx)

	if t.result.Persisted() {
		deleted, err := t.cache.DeletePrefix(ctx, cache.ContentPrefix())
		if err != nil {
			slog.Warn("Failed to invalidate cache", "error", err)
		} else {
			slog.Debug("Cache invalidated", "keys", deleted)
		}
	}

	if !t.result.Success {
		return errors.New(t.result.Error)
	}

	slog.Info("Task completed", "type", string(t.Type), "trigger", string(t.Trigger),
		"articles", t.result.ArticlesGenerated, "duration", t.GetDuration())
	return nil
}

// Result is the outcome of the latest attempt
func (t *RunPipelineTask) Result() pipeline.Result {
	return t.result
}

// Done yields the result of the final attempt
func (t *RunPipelineTask) Done() <-chan pipeline.Result {
	return t.done
}

func (t *RunPipelineTask) Complete() {
	select {
	case t.done <- t.result:
	default:
	}
}
