// Package config defines the device configuration of the monitor and
// provides helpers to load, validate and save it in YAML format.
//
// Validate fills defaults, range-checks points and alarms and migrates legacy
// P<address>_<TYPE> alarm keys to the canonical alarm_<address>_<ordinal> form.
package config
