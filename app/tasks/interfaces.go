package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/bruinbrief/app/pipeline"
)

// TaskSchedulerInterface runs pipeline tasks one at a time, on a cron schedule
// and on demand.
//
//	scheduler, err := NewScheduler(orchestrator, cache, "0 */6 * * *", loc, 2)
//	scheduler.Start()
//	defer scheduler.Stop()
//	result, err := scheduler.TriggerRun(ctx)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerRun(ctx context.Context) (pipeline.Result, error)
	Status() Status
}

// Runner executes one pipeline pass
type Runner interface {
	Run(ctx context.Context) pipeline.Result
}

type Status struct {
	Running    bool             `json:"running"`
	Pending    int              `json:"pending"`
	Schedule   string           `json:"schedule,omitempty"`
	NextRun    *time.Time       `json:"next_run,omitempty"`
	LastResult *pipeline.Result `json:"last_result,omitempty"`
	LastRunAt  *time.Time       `json:"last_run_at,omitempty"`
}
