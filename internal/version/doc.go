// Package version exposes build metadata for tempmon.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// Short and Full render them for the CLI; Fields renders them for the startup log.
package version
