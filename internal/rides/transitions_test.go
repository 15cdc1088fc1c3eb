package rides

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yemeli/swiftride/pkg/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    models.RideStatus
		to      models.RideStatus
		allowed bool
	}{
		{models.RideStatusPending, models.RideStatusAccepted, true},
		{models.RideStatusPending, models.RideStatusCancelled, true},
		{models.RideStatusPending, models.RideStatusInProgress, false},
		{models.RideStatusPending, models.RideStatusCompleted, false},
		{models.RideStatusAccepted, models.RideStatusInProgress, true},
		{models.RideStatusAccepted, models.RideStatusCancelled, true},
		{models.RideStatusAccepted, models.RideStatusCompleted, false},
		{models.RideStatusAccepted, models.RideStatusPending, false},
		{models.RideStatusInProgress, models.RideStatusCompleted, true},
		{models.RideStatusInProgress, models.RideStatusCancelled, true},
		{models.RideStatusInProgress, models.RideStatusAccepted, false},
		{models.RideStatusCompleted, models.RideStatusCancelled, false},
		{models.RideStatusCompleted, models.RideStatusPending, false},
		{models.RideStatusCancelled, models.RideStatusAccepted, false},
		{models.RideStatusCancelled, models.RideStatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesAdmitNothing(t *testing.T) {
	all := []models.RideStatus{
		models.RideStatusPending,
		models.RideStatusAccepted,
		models.RideStatusInProgress,
		models.RideStatusCompleted,
		models.RideStatusCancelled,
	}

	for _, to := range all {
		assert.False(t, CanTransition(models.RideStatusCompleted, to))
		assert.False(t, CanTransition(models.RideStatusCancelled, to))
	}
}
