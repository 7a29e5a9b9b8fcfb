// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"context"
	"errors"
	"fmt"
)

// extraMakeVars are environment variables appended to the main module's
// make command line, one argument each.
var extraMakeVars = []string{"EXTRA", "EXTRA1", "EXTRA2", "EXTRA3", "EXTRA4", "EXTRA5"}

// makeRun describes one make invocation.
type makeRun struct {
	targets []string
	// dir is the directory to build in; empty means the working directory.
	dir string
	// parallel is the job count; zero or less builds serially.
	parallel int
	silent   bool
	// useExtra appends the EXTRA* arguments.
	useExtra bool
}

// makeArgs builds the make command line. Parallel builds are disabled for
// the 3.14 base series and output syncing is skipped for GNU Make 3.
func (d *Driver) makeArgs(m makeRun) []string {
	var args []string
	if m.parallel > 0 && !d.isBase314 {
		args = append(args, fmt.Sprintf("-j%d", m.parallel))
		if !d.isMake3 {
			args = append(args, "-Otarget")
		}
	}
	if m.silent {
		args = append(args, "-s")
	}
	if m.useExtra {
		args = append(args, d.extraArgs...)
	}
	return append(args, m.targets...)
}

// runMake runs make, bounded by the configured build timeout.
func (d *Driver) runMake(ctx context.Context, m makeRun) error {
	dir := m.dir
	if dir == "" {
		dir = d.workDir
	}
	cmd := Command{
		Name:   d.cfg.Make,
		Args:   d.makeArgs(m),
		Dir:    dir,
		Env:    d.env.Environ(),
		Stdout: d.stdout,
		Stderr: d.stderr,
	}
	d.logger.Debugf("EXEC '%s' in %s", cmd, dir)

	runCtx := ctx
	if d.cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.cfg.BuildTimeout)
		defer cancel()
	}

	err := d.runner.Run(runCtx, cmd)
	if err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Command: cmd.String(), Timeout: d.cfg.BuildTimeout}
	}
	return err
}
