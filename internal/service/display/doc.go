// Package display decides what the front panel shows.
//
// The Selector picks one frame per cycle from the active and acknowledged
// alarm queues, the OK screen, the idle screen or the status section.
// Renderers put the frame on a terminal or in the log.
package display
