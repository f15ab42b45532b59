// Package modbus exposes the monitor state as Modbus holding registers.
//
// The Client is a goburrow TCP client serialized by a mutex. The Publisher
// encodes point readings, the alarm summary and the output states into the
// register map and polls the Relay3 command register.
package modbus
