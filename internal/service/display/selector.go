package display

import (
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/tempmon/internal/domain/alarm"
)

// Default timings.
const (
	DefaultRotationInterval = 15 * time.Second
	DefaultOKWindow         = 60 * time.Second
)

// Options tunes the selector timings.
type Options struct {
	// RotationInterval is how long each acknowledged alarm stays in view.
	RotationInterval time.Duration
	// OKWindow is how long the OK screen stays lit before the display powers off.
	OKWindow time.Duration
}

// Selector picks the frame to show. It holds no locks: the monitor calls it
// from the tick and forwards button presses under the same mutex.
type Selector struct {
	// clock drives rotation and the OK window.
	clock alarm.Clock
	// info provides the status section.
	info InfoFunc
	// opts holds the timings.
	opts Options

	// activeIndex and activeKey track the active alarm in view.
	activeIndex int
	activeKey   alarm.Key
	// ackIndex is the acknowledged alarm in view.
	ackIndex int
	// rotatedAt is when the acknowledged view last moved.
	rotatedAt time.Time
	// okSince is when the OK screen appeared; zero while alarms are shown.
	okSince time.Time
	// status is true while the status section is open.
	status bool
	// seenActive holds the keys of the previous active queue.
	seenActive map[alarm.Key]struct{}
	// last is the previous screen.
	last Screen

	// shortPress and longPress are consumed by the next Select.
	shortPress bool
	longPress  bool
}

// NewSelector creates a selector. Zero timings fall back to the defaults.
func NewSelector(clock alarm.Clock, info InfoFunc, opts Options) *Selector {
	if clock == nil {
		clock = alarm.SystemClock{}
	}

	if opts.RotationInterval <= 0 {
		opts.RotationInterval = DefaultRotationInterval
	}

	if opts.OKWindow <= 0 {
		opts.OKWindow = DefaultOKWindow
	}

	return &Selector{
		clock:      clock,
		info:       info,
		opts:       opts,
		seenActive: make(map[alarm.Key]struct{}),
		last:       ScreenIdle,
	}
}

// ShortPress queues a short button press: next alarm, or wake from idle.
func (s *Selector) ShortPress() { s.shortPress = true }

// LongPress queues a long button press: toggle the status section.
func (s *Selector) LongPress() { s.longPress = true }

// Select picks the frame for this cycle. Both queues must already be sorted
// in display order.
func (s *Selector) Select(active, acknowledged []alarm.Snapshot) Frame {
	now := s.clock.Now()
	short, long := s.shortPress, s.longPress
	s.shortPress, s.longPress = false, false

	newActive := s.trackActive(active)

	if long {
		s.status = !s.status
		short = false
	}

	if s.status && newActive {
		s.status = false
	}

	var frame Frame

	switch {
	case s.status:
		frame = s.statusFrame()
	case len(active) > 0:
		frame = s.activeFrame(active, short)
	case len(acknowledged) > 0:
		frame = s.acknowledgedFrame(acknowledged, short, now)
	default:
		frame = s.idleFrame(short, now)
	}

	if frame.Screen != ScreenOK && frame.Screen != ScreenIdle {
		s.okSince = time.Time{}
	}

	s.last = frame.Screen

	return frame
}

// trackActive records the active keys and reports whether one of them is new.
func (s *Selector) trackActive(active []alarm.Snapshot) bool {
	current := make(map[alarm.Key]struct{}, len(active))
	newActive := false

	for _, a := range active {
		current[a.Key] = struct{}{}

		if _, ok := s.seenActive[a.Key]; !ok {
			newActive = true
		}
	}

	s.seenActive = current

	return newActive
}

// activeFrame keeps the alarm in view while it stays active. When it leaves
// the queue the alarm that took its place is shown.
func (s *Selector) activeFrame(active []alarm.Snapshot, short bool) Frame {
	idx := slices.IndexFunc(active, func(a alarm.Snapshot) bool { return a.Key == s.activeKey })
	if idx < 0 {
		idx = s.activeIndex
	}

	if short {
		idx++
	}

	idx %= len(active)

	s.activeIndex = idx
	s.activeKey = active[idx].Key

	return Frame{
		Screen: ScreenActive,
		Lines:  alarmLines(active[idx], idx, len(active)),
		Power:  true,
	}
}

// acknowledgedFrame rotates through the acknowledged queue.
func (s *Selector) acknowledgedFrame(acknowledged []alarm.Snapshot, short bool, now time.Time) Frame {
	switch {
	case s.last != ScreenAcknowledged:
		s.rotatedAt = now
	case short || now.Sub(s.rotatedAt) >= s.opts.RotationInterval:
		s.ackIndex++
		s.rotatedAt = now
	}

	s.ackIndex %= len(acknowledged)

	return Frame{
		Screen: ScreenAcknowledged,
		Lines:  alarmLines(acknowledged[s.ackIndex], s.ackIndex, len(acknowledged)),
		Power:  true,
	}
}

// idleFrame shows OK for the OK window, then powers the display off.
// A short press restarts the OK window.
func (s *Selector) idleFrame(short bool, now time.Time) Frame {
	if s.okSince.IsZero() || short {
		s.okSince = now
	}

	if now.Sub(s.okSince) < s.opts.OKWindow {
		return Frame{
			Screen: ScreenOK,
			Lines:  []string{"OK", "No alarms"},
			Power:  true,
		}
	}

	return Frame{Screen: ScreenIdle, Power: false}
}

// statusFrame renders the status section.
func (s *Selector) statusFrame() Frame {
	var info SystemInfo
	if s.info != nil {
		info = s.info()
	}

	return Frame{
		Screen: ScreenStatus,
		Lines: []string{
			fmt.Sprintf("%s %s", info.DeviceName, info.Version),
			"API " + info.ListenAddress,
			fmt.Sprintf("Sensors %d, alarms %d", info.BoundSensors, info.Alarms),
			"Uptime " + info.Uptime.Truncate(time.Second).String(),
		},
		Power: true,
	}
}

// alarmLines renders one alarm as display rows.
func alarmLines(a alarm.Snapshot, idx, total int) []string {
	name := a.PointName
	if name == "" {
		name = fmt.Sprintf("Point %d", a.PointAddress)
	}

	detail := a.Type.String()
	if a.Type.IsTemperature() {
		detail = fmt.Sprintf("%s %d°C / %d°C", a.Type, a.Temperature, a.Threshold)
	}

	return []string{
		fmt.Sprintf("[%d/%d] %s %s", idx+1, total, a.Priority, a.Stage),
		name,
		detail,
		"Since " + a.Created.Format(alarm.TimestampLayout),
	}
}
