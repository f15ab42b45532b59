// Package state persists the manual relay modes of the monitor.
//
// The FileRepository stores the modes, the operator who changed them last and
// the time of the change as protobuf JSON on disk, so a relay forced on or off
// stays that way after a restart.
package state
