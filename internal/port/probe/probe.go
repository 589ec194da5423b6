// Package probe defines the port for opaque external tool probes used by the
// status report (e.g. "gh auth status").
package probe

import "context"

// Result is the raw outcome of running a probe.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Spec names a probe and the command that implements it.
type Spec struct {
	Name    string
	Command string
	Args    []string
}

// Runner executes probes. Implementations must honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}
