// Package output turns the alarm summary into relay and LED states.
//
// Compute is a pure function from alarm counts to a Plan. The Arbitrator
// applies plans to the hardware through the Ports contract, honoring the
// manual relay modes and avoiding redundant writes.
package output
