// Package registry owns the configured alarms of the device.
//
// The Registry keeps alarms keyed by their configuration key plus an ordered
// slice sorted by priority and age, re-evaluates them at a fixed interval and
// answers the aggregate queries the output arbitrator and the display use.
package registry
