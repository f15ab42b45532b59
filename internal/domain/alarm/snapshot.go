package alarm

import "time"

// Snapshot is a read-only copy of an alarm, safe to hand to the display,
// the API or another goroutine.
type Snapshot struct {
	Key               Key
	Type              Type
	PointAddress      int
	PointName         string
	Stage             Stage
	Priority          Priority
	Enabled           bool
	Hysteresis        int
	Temperature       int
	Threshold         int
	Created           time.Time
	Acknowledged      time.Time
	Cleared           time.Time
	AcknowledgedDelay time.Duration
	ClearDelay        time.Duration
}

// Snapshot copies the current state of the alarm.
func (a *Alarm) Snapshot() Snapshot {
	s := Snapshot{
		Key:               a.Key(),
		Type:              a.kind,
		PointAddress:      a.address,
		Stage:             a.stage,
		Priority:          a.priority,
		Enabled:           a.enabled,
		Hysteresis:        a.hysteresis,
		Threshold:         a.Threshold(),
		Created:           a.created,
		Acknowledged:      a.acknowledged,
		Cleared:           a.cleared,
		AcknowledgedDelay: a.acknowledgedDelay,
		ClearDelay:        a.clearDelay,
	}

	if a.source != nil {
		s.PointName = a.source.Name()
		s.Temperature = a.source.CurrentTemperature()
	}

	return s
}

// CompareSnapshots orders snapshots like Compare orders alarms.
func CompareSnapshots(a, b Snapshot) int {
	switch {
	case a.Priority != b.Priority:
		if a.Priority > b.Priority {
			return -1
		}

		return 1
	case a.Created.Before(b.Created):
		return -1
	case b.Created.Before(a.Created):
		return 1
	default:
		return 0
	}
}

// Snapshots copies every alarm in order.
func Snapshots(alarms []*Alarm) []Snapshot {
	result := make([]Snapshot, 0, len(alarms))
	for _, a := range alarms {
		result = append(result, a.Snapshot())
	}

	return result
}
