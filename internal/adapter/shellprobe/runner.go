// Package shellprobe implements probe.Runner by executing local CLI tools
// such as `gh auth status`.
package shellprobe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/Strob0t/opsboard/internal/port/probe"
)

const (
	// maxOutput caps how much of each stream is kept.
	maxOutput = 64 << 10

	// waitDelay bounds how long Run waits for grandchildren holding the
	// output pipes after the command is killed.
	waitDelay = time.Second
)

// Runner executes probes as child processes.
type Runner struct {
	// execCommand is swappable for testing.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New returns a Runner backed by os/exec.
func New() *Runner {
	return &Runner{execCommand: exec.CommandContext}
}

// Run executes the probe command. A non-zero exit is reported through
// Result.ExitCode, not as an error; errors mean the command could not run
// at all (missing binary, context cancelled).
func (r *Runner) Run(ctx context.Context, spec probe.Spec) (probe.Result, error) {
	cmd := r.execCommand(ctx, spec.Command, spec.Args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, left: maxOutput}
	cmd.Stderr = &limitedWriter{w: &stderr, left: maxOutput}

	err := cmd.Run()
	res := probe.Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("probe %s: %w", spec.Name, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, fmt.Errorf("probe %s: %w", spec.Name, err)
	}
}

// limitedWriter discards bytes past its budget while reporting full writes,
// so a chatty tool never fails with a short write.
type limitedWriter struct {
	w    io.Writer
	left int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if l.left <= 0 {
		return n, nil
	}
	if len(p) > l.left {
		p = p[:l.left]
	}
	l.left -= len(p)
	if _, err := l.w.Write(p); err != nil {
		return 0, err
	}
	return n, nil
}
