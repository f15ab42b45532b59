// Package alarm contains the alarm lifecycle state machine.
//
// One Alarm exists per (measurement point, alarm type) pair. It moves through
// the NEW, ACTIVE, ACKNOWLEDGED, CLEARED and RESOLVED stages on every
// evaluation, applying hysteresis when a condition ends, an acknowledgment
// timeout while acknowledged and a dwell time before auto-resolution.
// Every transition and configuration change is reported to an injected Sink.
//
// Alarms hold no locks: they are driven from the monitor's single tick loop.
package alarm
