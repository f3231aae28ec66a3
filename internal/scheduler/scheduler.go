// Package scheduler enqueues verification work on the workflow engine. The
// engine delivers each task to the run-external-checks worker at least once,
// so downstream processing has to stay idempotent.
package scheduler

import (
	"context"
	"fmt"

	"licence-service/internal/common/camunda"
	"licence-service/internal/common/logger"
)

// Scheduler starts one process instance per submitted application.
type Scheduler interface {
	EnqueueExternalChecks(ctx context.Context, applicationID string) error
}

type zeebeScheduler struct {
	client    *camunda.Client
	processID string
	logger    logger.Logger
}

func New(client *camunda.Client, processID string, log logger.Logger) Scheduler {
	return &zeebeScheduler{
		client:    client,
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

func (s *zeebeScheduler) EnqueueExternalChecks(ctx context.Context, applicationID string) error {
	variables := map[string]interface{}{
		"applicationId": applicationID,
	}

	_, err := s.client.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		cmd, err := s.client.GetClient().
			NewCreateInstanceCommand().
			BPMNProcessId(s.processID).
			LatestVersion().
			VariablesFromMap(variables)
		if err != nil {
			return nil, fmt.Errorf("build create-instance command: %w", err)
		}
		return cmd.Send(ctx)
	}, "enqueue-external-checks")
	if err != nil {
		return err
	}

	s.logger.Info("external checks enqueued", map[string]interface{}{
		"applicationId": applicationID,
		"processId":     s.processID,
	})
	return nil
}
