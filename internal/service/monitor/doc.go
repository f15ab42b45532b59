// Package monitor runs the temperature monitor.
//
// A Monitor owns the point table, the alarm registry, the output arbitrator
// and the display selector, and drives them from a single tick: read sensors,
// evaluate alarms, drive outputs, refresh the display and publish Modbus
// registers. API calls are serialized with the tick through one mutex.
//
// Run builds a Monitor from the YAML configuration and serves it over gRPC
// with an optional Prometheus endpoint.
package monitor
