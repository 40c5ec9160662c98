package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStudentSuspension_CanSubmitAppeal(t *testing.T) {
	suspendedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := StudentSuspension{
		SuspendedAt:    suspendedAt,
		CanAppeal:      true,
		AppealDeadline: suspendedAt.Add(30 * 24 * time.Hour),
	}

	assert.True(t, s.CanSubmitAppeal(suspendedAt))
	assert.True(t, s.CanSubmitAppeal(s.AppealDeadline))
	assert.False(t, s.CanSubmitAppeal(s.AppealDeadline.Add(time.Second)))

	s.AppealSubmitted = true
	assert.False(t, s.CanSubmitAppeal(suspendedAt))

	s.AppealSubmitted = false
	s.CanAppeal = false
	assert.False(t, s.CanSubmitAppeal(suspendedAt))
}

func TestModuleProgress_RemainingAttempts(t *testing.T) {
	p := ModuleProgress{AttemptsCount: 1, MaxAttempts: 3}
	assert.Equal(t, 2, p.RemainingAttempts())

	p.AttemptsCount = 3
	assert.Equal(t, 0, p.RemainingAttempts())

	p.AttemptsCount = 5
	assert.Equal(t, 0, p.RemainingAttempts())
}
