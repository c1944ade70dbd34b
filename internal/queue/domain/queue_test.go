package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusWaiting, StatusCalled, true},
		{StatusWaiting, StatusCancelled, true},
		{StatusWaiting, StatusNoShow, true},
		{StatusWaiting, StatusServing, false},
		{StatusWaiting, StatusDone, false},
		{StatusCalled, StatusServing, true},
		{StatusCalled, StatusWaiting, true},
		{StatusCalled, StatusNoShow, true},
		{StatusCalled, StatusCancelled, true},
		{StatusCalled, StatusDone, false},
		{StatusServing, StatusDone, true},
		{StatusServing, StatusCancelled, false},
		{StatusDone, StatusWaiting, false},
		{StatusCancelled, StatusWaiting, false},
		{StatusNoShow, StatusCalled, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []string{StatusDone, StatusCancelled, StatusNoShow} {
		assert.True(t, IsTerminal(s), s)
	}
	for _, s := range ActiveStatuses {
		assert.False(t, IsTerminal(s), s)
	}
}

func TestPositionAndEstimatedWait(t *testing.T) {
	assert.Equal(t, 1, Position(0))
	assert.Equal(t, 4, Position(3))

	eta, err := EstimatedWait(1, 10)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), eta)

	eta, err = EstimatedWait(4, 7)
	require.NoError(t, err)
	assert.Equal(t, 21*time.Minute, eta)
}

func TestEstimatedWait_Invalid(t *testing.T) {
	_, err := EstimatedWait(0, 10)
	assert.Error(t, err)

	_, err = EstimatedWait(2, 0)
	assert.Error(t, err)

	_, err = EstimatedWait(2, 241)
	assert.Error(t, err)
}

func TestTicketApply(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tk := &Ticket{Status: StatusWaiting}

	tk.Apply(StatusCalled, now)
	require.NotNil(t, tk.CalledAt)
	assert.Equal(t, now, *tk.CalledAt)

	tk.Apply(StatusWaiting, now.Add(time.Minute))
	assert.Nil(t, tk.CalledAt)

	tk.Apply(StatusCalled, now.Add(2*time.Minute))
	tk.Apply(StatusServing, now.Add(3*time.Minute))
	tk.Apply(StatusDone, now.Add(4*time.Minute))
	assert.Equal(t, StatusDone, tk.Status)
	require.NotNil(t, tk.ServingAt)
	require.NotNil(t, tk.FinishedAt)
	assert.Equal(t, now.Add(4*time.Minute), *tk.FinishedAt)
}
