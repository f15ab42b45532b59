package display

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/tempmon/internal/domain/alarm"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	// now is the current fake time.
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSelector() (*Selector, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	info := func() SystemInfo {
		return SystemInfo{DeviceName: "tempmon", Version: "1.0.0", ListenAddress: ":50051", BoundSensors: 3, Alarms: 9}
	}

	return NewSelector(clock, info, Options{RotationInterval: 15 * time.Second, OKWindow: time.Minute}), clock
}

func snapshot(address int, p alarm.Priority, stage alarm.Stage) alarm.Snapshot {
	return alarm.Snapshot{
		Key:          alarm.NewKey(alarm.TypeHighTemperature, address),
		Type:         alarm.TypeHighTemperature,
		PointAddress: address,
		Priority:     p,
		Stage:        stage,
		Enabled:      true,
		Temperature:  55,
		Threshold:    50,
	}
}

func TestOKWindowThenIdle(t *testing.T) {
	t.Parallel()

	s, clock := newTestSelector()

	f := s.Select(nil, nil)
	require.Equal(t, ScreenOK, f.Screen)
	require.True(t, f.Power)

	clock.Advance(59 * time.Second)
	require.Equal(t, ScreenOK, s.Select(nil, nil).Screen)

	clock.Advance(time.Second)
	f = s.Select(nil, nil)
	require.Equal(t, ScreenIdle, f.Screen)
	require.False(t, f.Power)

	// A short press wakes the display for another OK window.
	s.ShortPress()
	require.Equal(t, ScreenOK, s.Select(nil, nil).Screen)
}

func TestActiveQueueAdvancesWhenAlarmLeaves(t *testing.T) {
	t.Parallel()

	s, _ := newTestSelector()

	a := snapshot(1, alarm.PriorityCritical, alarm.StageActive)
	b := snapshot(2, alarm.PriorityHigh, alarm.StageActive)
	c := snapshot(3, alarm.PriorityLow, alarm.StageActive)

	f := s.Select([]alarm.Snapshot{a, b, c}, nil)
	require.Equal(t, ScreenActive, f.Screen)
	require.True(t, f.Power)
	require.Equal(t, "[1/3] CRITICAL ACTIVE", f.Lines[0])

	s.ShortPress()
	f = s.Select([]alarm.Snapshot{a, b, c}, nil)
	require.Equal(t, "[2/3] HIGH ACTIVE", f.Lines[0])

	// The view stays on b while it remains active, even if the order shifts.
	d := snapshot(4, alarm.PriorityCritical, alarm.StageActive)
	f = s.Select([]alarm.Snapshot{d, a, b, c}, nil)
	require.Equal(t, "[3/4] HIGH ACTIVE", f.Lines[0])
	require.Equal(t, "Point 2", f.Lines[1])

	// b is acknowledged: the alarm that took its slot comes into view.
	b.Stage = alarm.StageAcknowledged
	f = s.Select([]alarm.Snapshot{d, a, c}, []alarm.Snapshot{b})
	require.Equal(t, "[3/3] LOW ACTIVE", f.Lines[0])

	// c leaves too; the index wraps around.
	f = s.Select([]alarm.Snapshot{d, a}, []alarm.Snapshot{b})
	require.Equal(t, "[1/2] CRITICAL ACTIVE", f.Lines[0])
}

func TestAcknowledgedRotation(t *testing.T) {
	t.Parallel()

	s, clock := newTestSelector()

	acked := []alarm.Snapshot{
		snapshot(1, alarm.PriorityHigh, alarm.StageAcknowledged),
		snapshot(2, alarm.PriorityMedium, alarm.StageAcknowledged),
	}

	f := s.Select(nil, acked)
	require.Equal(t, ScreenAcknowledged, f.Screen)
	require.Equal(t, "[1/2] HIGH ACKNOWLEDGED", f.Lines[0])

	clock.Advance(14 * time.Second)
	require.Equal(t, "[1/2] HIGH ACKNOWLEDGED", s.Select(nil, acked).Lines[0])

	clock.Advance(time.Second)
	require.Equal(t, "[2/2] MEDIUM ACKNOWLEDGED", s.Select(nil, acked).Lines[0])

	s.ShortPress()
	require.Equal(t, "[1/2] HIGH ACKNOWLEDGED", s.Select(nil, acked).Lines[0])
}

func TestStatusSection(t *testing.T) {
	t.Parallel()

	s, _ := newTestSelector()

	a := snapshot(1, alarm.PriorityHigh, alarm.StageActive)
	require.Equal(t, ScreenActive, s.Select([]alarm.Snapshot{a}, nil).Screen)

	s.LongPress()
	f := s.Select([]alarm.Snapshot{a}, nil)
	require.Equal(t, ScreenStatus, f.Screen)
	require.Equal(t, "tempmon 1.0.0", f.Lines[0])
	require.Equal(t, "Sensors 3, alarms 9", f.Lines[2])

	// The status section stays while the active set is unchanged.
	require.Equal(t, ScreenStatus, s.Select([]alarm.Snapshot{a}, nil).Screen)

	// A new active alarm closes it immediately.
	b := snapshot(2, alarm.PriorityCritical, alarm.StageActive)
	f = s.Select([]alarm.Snapshot{b, a}, nil)
	require.Equal(t, ScreenActive, f.Screen)

	// Long press toggles it open and closed.
	s.LongPress()
	require.Equal(t, ScreenStatus, s.Select(nil, nil).Screen)
	s.LongPress()
	require.Equal(t, ScreenOK, s.Select(nil, nil).Screen)
}

func TestRenderers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	frame := Frame{Screen: ScreenOK, Lines: []string{"OK", "No alarms"}, Power: true}

	var buf bytes.Buffer

	r := NewTerminalRenderer(&buf)
	require.NoError(t, r.Render(ctx, frame))
	require.Contains(t, buf.String(), "No alarms")

	written := buf.Len()
	require.NoError(t, r.Render(ctx, frame))
	require.Equal(t, written, buf.Len(), "unchanged frames are not redrawn")

	require.NoError(t, r.Render(ctx, Frame{Screen: ScreenIdle}))
	require.Contains(t, buf.String(), "display off")

	require.NoError(t, NewLogRenderer().Render(ctx, frame))
}
