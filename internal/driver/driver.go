// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/epics-base/epics-ci/internal/cictx"
	"github.com/epics-base/epics-ci/internal/config"
	"github.com/epics-base/epics-ci/pkg/deps"
)

type (
	// Options configures a Driver. Session, Context and Config are required.
	Options struct {
		Session *deps.Session
		Context *cictx.Context
		Config  *config.Config
		// Runner defaults to an ExecRunner.
		Runner Runner
		// Logger defaults to a discarding logger.
		Logger *log.Logger
		// Stdout receives progress output and child output. Defaults to os.Stdout.
		Stdout io.Writer
		// Stderr receives child error output. Defaults to os.Stderr.
		Stderr io.Writer
		// Environ is the base environment of child processes. Defaults to os.Environ().
		Environ []string
		// AddPaths are appended to PATH after {NAME} expansion.
		AddPaths []string
	}

	// Driver runs the CI verbs for one project checkout.
	Driver struct {
		session  *deps.Session
		ci       *cictx.Context
		cfg      *config.Config
		runner   Runner
		logger   *log.Logger
		stdout   io.Writer
		stderr   io.Writer
		print    *printer
		env      *environment
		addPaths []string
		workDir  string

		// Filled by setupForBuild.
		ready          bool
		basePlace      string
		isBase314      bool
		hasTestResults bool
		isMake3        bool
		extraArgs      []string
	}
)

// New creates a Driver.
func New(opts Options) (*Driver, error) {
	if opts.Session == nil {
		return nil, errors.New("driver: session is required")
	}
	if opts.Context == nil {
		return nil, errors.New("driver: build context is required")
	}
	if opts.Config == nil {
		return nil, errors.New("driver: config is required")
	}

	d := &Driver{
		session:  opts.Session,
		ci:       opts.Context,
		cfg:      opts.Config,
		runner:   opts.Runner,
		logger:   opts.Logger,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		addPaths: opts.AddPaths,
		workDir:  opts.Session.WorkDir(),
	}
	if d.runner == nil {
		d.runner = NewExecRunner()
	}
	if d.logger == nil {
		d.logger = log.New(io.Discard)
	}
	if d.stdout == nil {
		d.stdout = os.Stdout
	}
	if d.stderr == nil {
		d.stderr = os.Stderr
	}
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	d.env = newEnvironment(environ)
	d.print = newPrinter(d.stdout, d.ci.Service)
	return d, nil
}

// Build compiles the main module, passing makeArgs to make.
func (d *Driver) Build(ctx context.Context, makeArgs []string) error {
	if err := d.setupForBuild(ctx); err != nil {
		return err
	}
	d.print.FoldStart("build.module", "Build the main module")
	if err := d.runMake(ctx, makeRun{targets: makeArgs, parallel: d.cfg.Parallel, useExtra: true}); err != nil {
		return err
	}
	d.print.FoldEnd("build.module", "Build the main module")
	return nil
}

// Test runs the main module tests: "tapfiles" when the base supports test
// results, "runtests" otherwise.
func (d *Driver) Test(ctx context.Context) error {
	if !d.ci.Test {
		d.print.Notice("Running tests skipped (TEST=NO)")
		return nil
	}
	if err := d.setupForBuild(ctx); err != nil {
		return err
	}
	target := "runtests"
	if d.hasTestResults {
		target = "tapfiles"
	}
	d.print.FoldStart("test.module", "Run the main module tests")
	if err := d.runMake(ctx, makeRun{targets: []string{target}, parallel: d.cfg.Parallel, useExtra: true}); err != nil {
		return err
	}
	d.print.FoldEnd("test.module", "Run the main module tests")
	return nil
}

// TestResults sums up test results, or reports that the base cannot.
func (d *Driver) TestResults(ctx context.Context) error {
	if !d.ci.Test {
		d.print.Notice("Test results skipped (TEST=NO)")
		return nil
	}
	if err := d.setupForBuild(ctx); err != nil {
		return err
	}
	d.print.FoldStart("test.results", "Sum up main module test results")
	if d.hasTestResults {
		if err := d.runMake(ctx, makeRun{targets: []string{"test-results"}, silent: true}); err != nil {
			return err
		}
	} else {
		d.print.Notice("Base in %s does not implement 'test-results' target", d.basePlace)
	}
	d.print.FoldEnd("test.results", "Sum up main module test results")
	return nil
}

// Exec runs argv with the build environment and MAKE set. argv is executed
// directly, not through a shell.
func (d *Driver) Exec(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("exec: no command given")
	}
	if err := d.setupForBuild(ctx); err != nil {
		return err
	}
	d.env.Set("MAKE", d.cfg.Make)

	title := fmt.Sprintf("Execute command %q", argv)
	d.print.FoldStart("exec.command", title)
	cmd := Command{
		Name:   argv[0],
		Args:   argv[1:],
		Dir:    d.workDir,
		Env:    d.env.Environ(),
		Stdout: d.stdout,
		Stderr: d.stderr,
	}
	d.logger.Debugf("EXEC '%s' in %s", cmd, d.workDir)
	if err := d.runner.Run(ctx, cmd); err != nil {
		return err
	}
	d.print.FoldEnd("exec.command", title)
	return nil
}

// HostArch returns EPICS_HOST_ARCH as seen by child processes.
func (d *Driver) HostArch() string { return d.env.Get("EPICS_HOST_ARCH") }

// Environ returns the environment handed to child processes.
func (d *Driver) Environ() []string { return d.env.Environ() }
