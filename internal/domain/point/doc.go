// Package point models measurement points: logical temperature locations
// that may be bound to a physical sensor.
//
// A Table holds all 60 slots of the device (50 one-wire, 10 RTD). Points are
// created once at startup and never destroyed; alarms refer to them by address.
package point
