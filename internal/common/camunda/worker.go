// internal/common/camunda/worker.go
package camunda

import (
	"licence-service/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler processes a single activated job. Implementations complete or
// fail the job through the provided JobClient.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Worker binds a JobHandler to a task type on the broker.
type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

func NewWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	handler JobHandler,
	log logger.Logger,
) *Worker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(func(jobClient worker.JobClient, job entities.Job) {
			handler.Handle(jobClient, job)
		}).
		MaxJobsActive(maxJobsActive).
		Open()

	log.Info("worker opened", map[string]interface{}{"taskType": taskType})

	return &Worker{
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

// Close drains in-flight jobs and stops polling.
func (w *Worker) Close() {
	w.logger.Info("stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
}
