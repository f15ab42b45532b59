// Package metrics exposes Prometheus collectors for the monitor:
// alarm transitions and events, alarm counts per priority and stage,
// output states, tick latency and sensor read failures.
//
// Init registers the collectors once. Helpers are safe to call before Init;
// they do nothing until the collectors exist.
package metrics
