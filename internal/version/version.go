package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

//nolint:gochecknoglobals // Injected with -ldflags "-X".
var (
	// Version is the semantic version of the build.
	Version = "dev"
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns the semantic version. Builds installed with `go install`
// report the module version when nothing was injected.
func Short() string {
	if Version != "dev" {
		return Version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return Version
}

// Full returns a human-readable version line with commit, build time and toolchain.
func Full() string {
	return fmt.Sprintf("tempmon %s (commit %s, built %s, %s %s/%s)",
		Short(), Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Fields returns the build metadata as logger key-value pairs.
func Fields() []any {
	return []any{
		"version", Short(),
		"commit", Commit,
		"build_time", BuildTime,
	}
}
