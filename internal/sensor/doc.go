// Package sensor provides the sensor collaborators bound to measurement points:
// a simulated sensor for bench setups and a sensor polled over Modbus.
package sensor
