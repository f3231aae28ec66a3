// internal/models/status_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"pending to in progress", StatusPending, StatusExternalChecksInProgress, true},
		{"in progress to passed", StatusExternalChecksInProgress, StatusExternalChecksPassed, true},
		{"in progress to failed", StatusExternalChecksInProgress, StatusExternalChecksFailed, true},
		{"passed to assigned", StatusExternalChecksPassed, StatusAssignedToInspector, true},
		{"assigned to approved", StatusAssignedToInspector, StatusApproved, true},
		{"assigned to rejected", StatusAssignedToInspector, StatusRejected, true},
		{"approved to printed", StatusApproved, StatusPrinted, true},

		{"pending cannot skip to passed", StatusPending, StatusExternalChecksPassed, false},
		{"pending cannot be approved", StatusPending, StatusApproved, false},
		{"no backward move from assigned", StatusAssignedToInspector, StatusExternalChecksPassed, false},
		{"failed is terminal", StatusExternalChecksFailed, StatusPending, false},
		{"rejected is terminal", StatusRejected, StatusAssignedToInspector, false},
		{"printed is terminal", StatusPrinted, StatusApproved, false},
		{"no self transition", StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminals := []Status{StatusExternalChecksFailed, StatusRejected, StatusPrinted}
	for _, s := range terminals {
		assert.True(t, s.Terminal(), "expected %s to be terminal", s)
	}

	nonTerminals := []Status{
		StatusPending, StatusExternalChecksInProgress,
		StatusExternalChecksPassed, StatusAssignedToInspector, StatusApproved,
	}
	for _, s := range nonTerminals {
		assert.False(t, s.Terminal(), "expected %s not to be terminal", s)
	}
}

func TestStatus_Active(t *testing.T) {
	// Approved still counts as alive: the card has not been printed, so a new
	// application for the same category is still blocked.
	assert.True(t, StatusApproved.Active())
	assert.True(t, StatusPending.Active())
	assert.True(t, StatusAssignedToInspector.Active())

	assert.False(t, StatusExternalChecksFailed.Active())
	assert.False(t, StatusRejected.Active())
	assert.False(t, StatusPrinted.Active())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("external_checks_in_progress")
	assert.NoError(t, err)
	assert.Equal(t, StatusExternalChecksInProgress, s)

	_, err = ParseStatus("does_not_exist")
	assert.Error(t, err)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" b ")
	assert.NoError(t, err)
	assert.Equal(t, CategoryB, c)

	_, err = ParseCategory("Z")
	assert.Error(t, err)
}
