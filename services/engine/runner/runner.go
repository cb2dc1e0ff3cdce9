// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner invokes the external test command on a selection.
//
// The runner is a thin collaborator: it appends the selected test
// files to the configured command, streams the child's output through,
// and reports the exit code. An empty selection is a successful no-op.
// Failing tests are a result, not an error — callers decide what exit
// code to surface.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/AleutianAI/tia/pkg/logging"
	"github.com/AleutianAI/tia/services/engine/config"
)

// Result describes one runner invocation.
type Result struct {
	// Command is the full argv that was (or would have been) executed.
	Command []string

	// ExitCode is the child's exit code. -1 when the child did not
	// run to completion (timeout, start failure).
	ExitCode int

	// TimedOut reports that the run exceeded the configured timeout.
	TimedOut bool

	// Skipped reports that the selection was empty and no process
	// was started.
	Skipped bool

	// Duration is the wall-clock time of the invocation.
	Duration time.Duration
}

// Passed reports whether the run completed with a zero exit code.
// A skipped run counts as passed.
func (r *Result) Passed() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// Runner executes the configured test command.
//
// # Thread Safety
//
// Safe for concurrent use. Each Run starts its own process.
type Runner struct {
	command []string
	timeout time.Duration
	workDir string
	stdout  io.Writer
	stderr  io.Writer
	log     *logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithStdout redirects the child's stdout. Default: os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) { r.stdout = w }
}

// WithStderr redirects the child's stderr. Default: os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(r *Runner) { r.stderr = w }
}

// New creates a Runner from the runner configuration.
//
// workDir is the directory the command runs in, normally the project
// root so the selected test paths resolve.
func New(cfg config.RunnerConfig, workDir string, log *logging.Logger, opts ...Option) (*Runner, error) {
	if len(cfg.Command) == 0 {
		return nil, ErrEmptyCommand
	}
	if log == nil {
		log = logging.Default()
	}

	r := &Runner{
		command: append([]string(nil), cfg.Command...),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		workDir: workDir,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		log:     log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes the test command with the selected test files appended.
//
// Inputs:
//
//	ctx   - Context for cancellation. Must not be nil.
//	tests - Selected test files, appended to the command sorted.
//
// Outputs:
//
//	*Result - Always non-nil. A nonzero ExitCode from the child is
//	          reported here with a nil error.
//	error   - Timeout, cancellation, or failure to start the child.
func (r *Runner) Run(ctx context.Context, tests []string) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	if len(tests) == 0 {
		r.log.Info("no tests selected; nothing to run")
		return &Result{Command: append([]string(nil), r.command...), Skipped: true}, nil
	}

	sorted := append([]string(nil), tests...)
	sort.Strings(sorted)
	argv := append(append([]string(nil), r.command...), sorted...)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	r.log.Info("running selected tests",
		"command", argv[0],
		"tests", len(sorted),
		"timeout", r.timeout)

	start := time.Now()
	err := cmd.Run()
	result := &Result{Command: argv, Duration: time.Since(start)}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ExitCode = -1
		r.log.Warn("test run timed out", "timeout", r.timeout)
		return result, fmt.Errorf("%w after %s", ErrRunTimeout, r.timeout)
	case ctx.Err() != nil:
		result.ExitCode = -1
		return result, fmt.Errorf("test run canceled: %w", ctx.Err())
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			r.log.Info("test run finished",
				"exit_code", result.ExitCode,
				"duration", result.Duration)
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("starting test runner: %w", err)
	}

	r.log.Info("test run finished",
		"exit_code", 0,
		"duration", result.Duration)
	return result, nil
}
