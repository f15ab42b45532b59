// Package common holds helpers shared by the CLI commands.
//
// It provides a gRPC client for the monitor's alarm service with per-call
// timeouts, and detects the operator (hostname/username) sent with every
// request that changes state.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
