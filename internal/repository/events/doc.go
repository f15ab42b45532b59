// Package events stores alarm events in a SQLite database so that the
// history can be queried after a restart.
package events
