package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("drops trailing remainder", func(t *testing.T) {
		windows, err := Series(start, start.Add(100*time.Minute), 30*time.Minute)
		require.NoError(t, err)

		require.Len(t, windows, 3)
		assert.Equal(t, start, windows[0].Start)
		assert.Equal(t, start.Add(90*time.Minute), windows[2].End)
		assert.Equal(t, windows[0].End, windows[1].Start)
	})

	t.Run("exact fit", func(t *testing.T) {
		windows, err := Series(start, start.Add(time.Hour), 30*time.Minute)
		require.NoError(t, err)
		assert.Len(t, windows, 2)
	})

	t.Run("shorter than one slot", func(t *testing.T) {
		_, err := Series(start, start.Add(20*time.Minute), 30*time.Minute)
		assert.Error(t, err)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := Series(start, start, 30*time.Minute)
		assert.Error(t, err)
	})

	t.Run("too short slots", func(t *testing.T) {
		_, err := Series(start, start.Add(time.Hour), time.Minute)
		assert.Error(t, err)
	})

	t.Run("too many slots", func(t *testing.T) {
		_, err := Series(start, start.Add(24*time.Hour*30), 5*time.Minute)
		assert.Error(t, err)
	})
}

func TestWindowOverlaps(t *testing.T) {
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	w := Window{Start: nine, End: nine.Add(time.Hour)}

	assert.True(t, w.Overlaps(Window{Start: nine.Add(30 * time.Minute), End: nine.Add(90 * time.Minute)}))
	assert.True(t, w.Overlaps(Window{Start: nine.Add(-time.Hour), End: nine.Add(2 * time.Hour)}))
	assert.False(t, w.Overlaps(Window{Start: nine.Add(time.Hour), End: nine.Add(2 * time.Hour)}), "touching windows do not overlap")
	assert.False(t, w.Overlaps(Window{Start: nine.Add(-time.Hour), End: nine}))
}

func TestDecide(t *testing.T) {
	status, ok := Decide(DecisionAccept)
	assert.True(t, ok)
	assert.Equal(t, RequestAccepted, status)

	status, ok = Decide(DecisionDecline)
	assert.True(t, ok)
	assert.Equal(t, RequestDeclined, status)

	_, ok = Decide("maybe")
	assert.False(t, ok)
}

func TestSlotPublic_HidesCustomer(t *testing.T) {
	name := "Ana"
	s := Slot{ID: "s-1", ServiceLabel: "Haircut", CustomerName: &name, Status: SlotBooked}

	p := s.Public()
	assert.Equal(t, "s-1", p.ID)
	assert.Equal(t, "Haircut", p.ServiceLabel)
}
