// Package hardware implements the output ports of the monitor.
//
// LogPorts only log and remember what they were asked to do. SerialPorts
// send line commands to an IO board over a serial link.
package hardware
