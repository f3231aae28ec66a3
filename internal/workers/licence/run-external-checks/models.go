// internal/workers/licence/run-external-checks/models.go
package runexternalchecks

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID        string  `json:"applicationId"`
	Status               string  `json:"status"`
	AuthorityCheckPassed *bool   `json:"authorityCheckPassed,omitempty"`
	MedicalCheckPassed   *bool   `json:"medicalCheckPassed,omitempty"`
	FailureReason        *string `json:"failureReason,omitempty"`
	Skipped              bool    `json:"skipped"`
	CompletedAt          string  `json:"completedAt"` // ISO 8601
}
