package alarm

// Summary counts enabled alarms per priority in the ACTIVE and ACKNOWLEDGED stages.
// It is the only input of output arbitration.
type Summary struct {
	// Active is indexed by Priority.
	Active [4]int
	// Acknowledged is indexed by Priority.
	Acknowledged [4]int
}

// Present reports whether any alarm of priority p is active or acknowledged.
func (s Summary) Present(p Priority) bool {
	return s.Active[p] > 0 || s.Acknowledged[p] > 0
}

// AnyActive reports whether any alarm is in the ACTIVE stage.
func (s Summary) AnyActive() bool {
	return s.ActiveTotal() > 0
}

// ActiveTotal returns the number of ACTIVE alarms.
func (s Summary) ActiveTotal() int {
	return s.Active[0] + s.Active[1] + s.Active[2] + s.Active[3]
}

// AcknowledgedTotal returns the number of ACKNOWLEDGED alarms.
func (s Summary) AcknowledgedTotal() int {
	return s.Acknowledged[0] + s.Acknowledged[1] + s.Acknowledged[2] + s.Acknowledged[3]
}
