// internal/workers/licence/run-external-checks/handler_test.go
package runexternalchecks

import (
	"context"
	"testing"
	"time"

	stderrors "licence-service/internal/common/errors"
	"licence-service/internal/common/logger"
	"licence-service/internal/common/validation"
	"licence-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeLifecycle struct {
	app      *models.Application
	proceed  bool
	beginErr error

	completed         bool
	completeOK        bool
	completeErr       error
	gotAuthorityValue bool
	gotMedicalValue   bool
}

func (f *fakeLifecycle) BeginVerification(_ context.Context, _ string) (*models.Application, bool, error) {
	return f.app, f.proceed, f.beginErr
}

func (f *fakeLifecycle) CompleteVerification(_ context.Context, _ *models.Application, authorityPassed, medicalPassed bool) (bool, error) {
	f.completed = true
	f.gotAuthorityValue = authorityPassed
	f.gotMedicalValue = medicalPassed
	return f.completeOK, f.completeErr
}

type fakeChecker struct {
	authority      bool
	medical        bool
	authorityCalls int
	medicalCalls   int
}

func (f *fakeChecker) CheckAuthority(_ context.Context, _ string) bool {
	f.authorityCalls++
	return f.authority
}

func (f *fakeChecker) CheckMedical(_ context.Context, _ string) bool {
	f.medicalCalls++
	return f.medical
}

func pendingApp() *models.Application {
	return &models.Application{
		ID:          "app-001",
		ApplicantID: "user-001",
		Iin:         "900101312345",
		FullName:    "Aidar Bekov",
		Category:    models.CategoryB,
		Status:      models.StatusExternalChecksInProgress,
		CreatedAt:   time.Now().UTC(),
	}
}

func createTestHandler(t *testing.T, lifecycle Lifecycle, checker Checker) *Handler {
	return NewHandler(LoadConfig(), lifecycle, checker, nil, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_BothChecksPass(t *testing.T) {
	lifecycle := &fakeLifecycle{app: pendingApp(), proceed: true, completeOK: true}
	checker := &fakeChecker{authority: true, medical: true}
	handler := createTestHandler(t, lifecycle, checker)

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})

	require.NoError(t, err)
	assert.Equal(t, "external_checks_passed", output.Status)
	assert.False(t, output.Skipped)
	require.NotNil(t, output.AuthorityCheckPassed)
	assert.True(t, *output.AuthorityCheckPassed)
	require.NotNil(t, output.MedicalCheckPassed)
	assert.True(t, *output.MedicalCheckPassed)
	assert.Nil(t, output.FailureReason)
	assert.True(t, lifecycle.completed)
}

func TestHandler_Execute_FailureReasonNamesEveryFailedCheck(t *testing.T) {
	tests := []struct {
		name       string
		authority  bool
		medical    bool
		wantReason string
	}{
		{"authority only", false, true, "authority check not passed"},
		{"medical only", true, false, "medical check not passed"},
		{"both", false, false, "authority check not passed; medical check not passed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle := &fakeLifecycle{app: pendingApp(), proceed: true, completeOK: true}
			checker := &fakeChecker{authority: tt.authority, medical: tt.medical}
			handler := createTestHandler(t, lifecycle, checker)

			output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})

			require.NoError(t, err)
			assert.Equal(t, "external_checks_failed", output.Status)
			require.NotNil(t, output.FailureReason)
			assert.Equal(t, tt.wantReason, *output.FailureReason)
			assert.Equal(t, tt.authority, lifecycle.gotAuthorityValue)
			assert.Equal(t, tt.medical, lifecycle.gotMedicalValue)
		})
	}
}

func TestHandler_Execute_BothChecksAlwaysRun(t *testing.T) {
	// The authority refusal must not short-circuit the medical check.
	lifecycle := &fakeLifecycle{app: pendingApp(), proceed: true, completeOK: true}
	checker := &fakeChecker{authority: false, medical: true}
	handler := createTestHandler(t, lifecycle, checker)

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})

	require.NoError(t, err)
	assert.Equal(t, 1, checker.authorityCalls)
	assert.Equal(t, 1, checker.medicalCalls)
}

// ==========================
// Idempotency Tests
// ==========================

func TestHandler_Execute_SkipsMissingApplication(t *testing.T) {
	lifecycle := &fakeLifecycle{app: nil, proceed: false}
	checker := &fakeChecker{}
	handler := createTestHandler(t, lifecycle, checker)

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "missing"})

	require.NoError(t, err)
	assert.True(t, output.Skipped)
	assert.Equal(t, "not_found", output.Status)
	assert.Equal(t, 0, checker.authorityCalls)
	assert.False(t, lifecycle.completed)
}

func TestHandler_Execute_SkipsResolvedApplication(t *testing.T) {
	app := pendingApp()
	app.Status = models.StatusExternalChecksPassed
	lifecycle := &fakeLifecycle{app: app, proceed: false}
	checker := &fakeChecker{}
	handler := createTestHandler(t, lifecycle, checker)

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})

	require.NoError(t, err)
	assert.True(t, output.Skipped)
	assert.Equal(t, "external_checks_passed", output.Status)
	assert.Equal(t, 0, checker.authorityCalls)
}

func TestHandler_Execute_SkipsWhenAnotherDeliveryFinishedFirst(t *testing.T) {
	lifecycle := &fakeLifecycle{app: pendingApp(), proceed: true, completeOK: false}
	checker := &fakeChecker{authority: true, medical: true}
	handler := createTestHandler(t, lifecycle, checker)

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})

	require.NoError(t, err)
	assert.True(t, output.Skipped)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_PropagatesBeginError(t *testing.T) {
	dbErr := stderrors.NewDatabaseFailedError(assert.AnError)
	lifecycle := &fakeLifecycle{beginErr: dbErr}
	handler := createTestHandler(t, lifecycle, &fakeChecker{})

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})

	require.Error(t, err)
	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, stderrors.ErrCodeDatabaseFailed, stdErr.Code)
	assert.EqualValues(t, 3, stderrors.GetRetryCount(stdErr.Code))
}

func TestHandler_Execute_PropagatesCompleteError(t *testing.T) {
	lifecycle := &fakeLifecycle{
		app:         pendingApp(),
		proceed:     true,
		completeErr: stderrors.NewDatabaseFailedError(assert.AnError),
	}
	handler := createTestHandler(t, lifecycle, &fakeChecker{authority: true, medical: true})

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})
	assert.Error(t, err)
}

// ==========================
// Payload Validation Tests
// ==========================

func TestInputSchema(t *testing.T) {
	valid := map[string]interface{}{"applicationId": "app-001"}
	assert.NoError(t, validation.ValidatePayload(valid, inputSchema))

	missing := map[string]interface{}{"other": "x"}
	assert.Error(t, validation.ValidatePayload(missing, inputSchema))

	empty := map[string]interface{}{"applicationId": ""}
	assert.Error(t, validation.ValidatePayload(empty, inputSchema))

	wrongType := map[string]interface{}{"applicationId": 42}
	assert.Error(t, validation.ValidatePayload(wrongType, inputSchema))
}
