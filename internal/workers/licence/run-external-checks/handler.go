// internal/workers/licence/run-external-checks/handler.go
package runexternalchecks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stderrors "licence-service/internal/common/errors"
	"licence-service/internal/common/logger"
	"licence-service/internal/common/observability"
	"licence-service/internal/common/validation"
	"licence-service/internal/models"
	"licence-service/internal/service"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "run-external-checks"
)

// inputSchema guards the job payload before any state is touched.
var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"applicationId"},
	"properties": map[string]interface{}{
		"applicationId": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
	},
}

// Lifecycle is the slice of the application service the worker drives. The
// engine delivers jobs at least once, so both calls tolerate redelivery.
type Lifecycle interface {
	BeginVerification(ctx context.Context, id string) (*models.Application, bool, error)
	CompleteVerification(ctx context.Context, app *models.Application, authorityPassed, medicalPassed bool) (bool, error)
}

// Checker runs one external check. A false result covers both a genuine
// refusal and any transport failure; checks are fail-closed.
type Checker interface {
	CheckAuthority(ctx context.Context, iin string) bool
	CheckMedical(ctx context.Context, iin string) bool
}

type Handler struct {
	lifecycle Lifecycle
	checker   Checker
	metrics   *observability.Observability
	timeout   time.Duration
	logger    logger.Logger
}

func NewHandler(config *Config, lifecycle Lifecycle, checker Checker, metrics *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		checker:   checker,
		metrics:   metrics,
		timeout:   config.Timeout,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &payload); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}
	if err := validation.ValidatePayload(payload, inputSchema); err != nil {
		h.failJob(client, job, "PARSE_ERROR", err.Error(), 0)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "UNKNOWN_ERROR"
		retries := int32(0)
		var stdErr *stderrors.StandardError
		if errors.As(err, &stdErr) {
			bpmnErr := stderrors.ConvertToBPMNError(stdErr)
			errorCode = bpmnErr.Code
			retries = bpmnErr.Retries
		}
		h.recordJob(ctx, started, "failed")
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.recordJob(ctx, started, output.Status)
	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	app, proceed, err := h.lifecycle.BeginVerification(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if !proceed {
		// Missing or already resolved application: a redelivered job. The job
		// completes so the engine stops redelivering.
		status := "not_found"
		if app != nil {
			status = string(app.Status)
		}
		h.logger.Info("skipping job, application not awaiting checks", map[string]interface{}{
			"applicationId": input.ApplicationID,
			"status":        status,
		})
		return &Output{
			ApplicationID: input.ApplicationID,
			Status:        status,
			Skipped:       true,
			CompletedAt:   time.Now().UTC().Format(time.RFC3339),
		}, nil
	}

	// Both checks always run, so a failure message can name every failed
	// check at once.
	authorityPassed := h.runCheck(ctx, "authority", app.Iin, h.checker.CheckAuthority)
	medicalPassed := h.runCheck(ctx, "medical", app.Iin, h.checker.CheckMedical)

	done, err := h.lifecycle.CompleteVerification(ctx, app, authorityPassed, medicalPassed)
	if err != nil {
		return nil, err
	}
	if !done {
		// Another delivery of the same job finished first.
		return &Output{
			ApplicationID: input.ApplicationID,
			Status:        string(app.Status),
			Skipped:       true,
			CompletedAt:   time.Now().UTC().Format(time.RFC3339),
		}, nil
	}

	status := models.StatusExternalChecksPassed
	var failureReason *string
	if !authorityPassed || !medicalPassed {
		status = models.StatusExternalChecksFailed
		reason := service.BuildFailureReason(authorityPassed, medicalPassed)
		failureReason = &reason
	}

	h.logger.Info("external checks recorded", map[string]interface{}{
		"applicationId":   input.ApplicationID,
		"status":          string(status),
		"authorityPassed": authorityPassed,
		"medicalPassed":   medicalPassed,
	})

	return &Output{
		ApplicationID:        input.ApplicationID,
		Status:               string(status),
		AuthorityCheckPassed: &authorityPassed,
		MedicalCheckPassed:   &medicalPassed,
		FailureReason:        failureReason,
		CompletedAt:          time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) runCheck(ctx context.Context, name, iin string, check func(context.Context, string) bool) bool {
	started := time.Now()
	passed := check(ctx, iin)
	if h.metrics != nil {
		h.metrics.RecordCheckDuration(ctx, name, time.Since(started))
	}
	return passed
}

func (h *Handler) recordJob(ctx context.Context, started time.Time, status string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordJobProcessed(ctx, status)
	h.metrics.RecordJobDuration(ctx, time.Since(started), status)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	} else {
		h.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
