// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/epics-base/epics-ci/internal/cictx"
	"github.com/epics-base/epics-ci/pkg/deps"
)

// vsParallelFix makes parallel builds work with Visual Studio on older bases.
const vsParallelFix = `
# Fix parallel build for some VisualStudio versions
ifneq ($(VisualStudioVersion),)
ifneq ($(VisualStudioVersion),11.0)
ifeq ($(findstring -FS,$(OPT_CXXFLAGS_NO)),)
  OPT_CXXFLAGS_NO += -FS
  OPT_CFLAGS_NO += -FS
endif
else
  OPT_CXXFLAGS_NO := $(filter-out -FS,$(OPT_CXXFLAGS_NO))
  OPT_CFLAGS_NO := $(filter-out -FS,$(OPT_CFLAGS_NO))
endif
endif`

var (
	vsFixPresent = regexp.MustCompile(`(?m)^ifneq \(\$\(VisualStudioVersion\),11\.0\)`)
	// compilerPattern splits "gcc-8" into name "gcc" and version suffix "-8".
	compilerPattern = regexp.MustCompile(`^([a-zA-Z][^-]*(?:-[a-zA-Z][^-]*)*)(-[0-9.]+)?$`)
)

// ModuleSummary is one row of the dependency summary printed by Prepare.
type ModuleSummary struct {
	Module  string
	Ref     string
	Rebuilt bool
	Commit  string
}

// Prepare loads setup files, fetches every module, configures the base build
// system when the base is new, and compiles the modules that must be rebuilt.
func (d *Driver) Prepare(ctx context.Context) error {
	d.hostInfo()

	if err := d.loadSetup(); err != nil {
		return err
	}

	lock, err := deps.AcquireCacheLock(d.session.CacheDir())
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			d.logger.Warnf("failed to release cache lock: %v", releaseErr)
		}
	}()

	if err := d.fetchDependencies(ctx); err != nil {
		return err
	}

	if d.session.BuildingBase() || slices.Contains(d.session.ToCompile(), d.session.RootDependency()) {
		if err := d.configureBase(ctx); err != nil {
			return err
		}
	}

	if d.ci.IsWindows() && len(d.ci.Choco) > 0 {
		d.print.FoldStart("install.choco", "Installing CHOCO packages")
		if err := d.runner.Run(ctx, Command{
			Name:   "choco",
			Args:   append([]string{"install"}, d.ci.Choco...),
			Env:    d.env.Environ(),
			Stdout: d.stdout,
			Stderr: d.stderr,
		}); err != nil {
			return err
		}
		d.print.FoldEnd("install.choco", "Installing CHOCO packages")
	}

	if err := d.setupForBuild(ctx); err != nil {
		return err
	}
	if err := d.toolVersions(ctx); err != nil {
		return err
	}

	if d.session.BuildingBase() {
		return nil
	}

	if err := d.buildDependencies(ctx); err != nil {
		return err
	}
	return d.printSummary()
}

func (d *Driver) hostInfo() {
	d.print.Heading("Build using %s", d.ci)
	for _, w := range d.ci.Warnings {
		d.logger.Warn(w)
	}
}

// loadSetup loads $SET (when set) then "defaults", and resolves every
// module so descriptor errors surface before anything is fetched.
func (d *Driver) loadSetup() error {
	d.print.FoldStart("load.setup", "Loading setup files")
	if set, ok := d.env.Lookup("SET"); ok && set != "" {
		if err := d.session.LoadSetup(set); err != nil {
			return err
		}
	}
	if err := d.session.LoadSetup("defaults"); err != nil {
		return err
	}
	for _, mod := range d.session.Modules() {
		if _, err := d.session.Resolve(mod); err != nil {
			return err
		}
	}
	d.print.FoldEnd("load.setup", "Loading setup files")

	store := d.session.Store()
	d.logger.Debug("Loaded setup")
	for _, k := range store.Keys() {
		d.logger.Debugf(" %s = %q", k, store.Value(k))
	}
	d.logger.Debugf("Effective module list: %v", d.session.Modules())
	return nil
}

// fetchDependencies ensures every module in order and copies the manifest
// into the project's configure directory (or its top when there is none).
func (d *Driver) fetchDependencies(ctx context.Context) error {
	d.print.FoldStart("check.out.dependencies", "Checking/cloning dependencies")
	for _, mod := range d.session.Modules() {
		if _, err := d.session.Ensure(ctx, mod); err != nil {
			return err
		}
	}
	if !d.session.BuildingBase() {
		target := filepath.Join(d.workDir, "configure")
		if !isDir(target) {
			target = d.workDir
		}
		dest, err := d.session.Manifest().CopyTo(target)
		if err != nil {
			return err
		}
		d.logger.Debugf("Copied %s to %s", d.session.Manifest().Path(), dest)
	}
	d.print.FoldEnd("check.out.dependencies", "Checking/cloning dependencies")
	return nil
}

// configureBase appends the build configuration to the base's site files.
func (d *Driver) configureBase(ctx context.Context) error {
	base, err := d.locateBase()
	if err != nil {
		return err
	}
	d.basePlace = base

	d.print.FoldStart("set.up.epics_build", "Configuring EPICS build system")
	if err := d.detectHostArch(ctx); err != nil {
		return err
	}

	writes := d.session.Writes()
	configSite := filepath.Join(base, "configure", "CONFIG_SITE")

	var site strings.Builder
	linkType := "shared (DLL)"
	if d.ci.Static {
		site.WriteString("SHARED_LIBRARIES=NO\nSTATIC_BUILD=YES\n")
		linkType = "static"
	}
	optType := "optimized"
	if d.ci.Debug {
		site.WriteString("HOST_OPT=NO\n")
		optType = "debug"
	}
	if err := writes.AppendFile(configSite, []byte(site.String())); err != nil {
		return err
	}
	d.print.Println(fmt.Sprintf("EPICS Base build system set up for %s build with %s linking", optType, linkType))

	if d.ci.IsWindows() && d.ci.IsVisualStudio() {
		configWin := filepath.Join(base, "configure", "os", "CONFIG.win32-x86.win32-x86")
		if data, err := os.ReadFile(configWin); err == nil && !vsFixPresent.Match(data) {
			d.logger.Debugf("Adding parallel build fix for VisualStudio to %s", configWin)
			if err := writes.AppendFile(configWin, []byte(vsParallelFix)); err != nil {
				return err
			}
		}
	}

	if d.ci.OS == "linux" {
		if err := d.configureWine(base, configSite); err != nil {
			return err
		}
	}

	if err := d.configureHostCompiler(base); err != nil {
		return err
	}

	var flags strings.Builder
	for _, name := range []string{"USR_CPPFLAGS", "USR_CFLAGS", "USR_CXXFLAGS"} {
		if v, ok := d.env.Lookup(name); ok {
			fmt.Fprintf(&flags, "\n%s += %s", name, v)
		}
	}
	if flags.Len() > 0 {
		if err := writes.AppendFile(configSite, []byte(flags.String())); err != nil {
			return err
		}
	}

	d.print.FoldEnd("set.up.epics_build", "Configuring EPICS build system")
	return nil
}

// configureWine sets up MinGW cross compilation for WINE=32 or WINE=64.
func (d *Driver) configureWine(base, configSite string) error {
	var osFile, prefix, target string
	switch d.env.Get("WINE") {
	case "32":
		d.print.Println("Cross compiler mingw32 / Wine")
		osFile, prefix, target = "CONFIG.linux-x86.win32-x86-mingw", "i686-w64-mingw32-", "win32-x86-mingw"
	case "64":
		d.print.Println("Cross compiler mingw64 / Wine")
		osFile, prefix, target = "CONFIG.linux-x86.windows-x64-mingw", "x86_64-w64-mingw32-", "windows-x64-mingw"
	default:
		return nil
	}
	writes := d.session.Writes()
	if err := writes.AppendFile(filepath.Join(base, "configure", "os", osFile), []byte("\nCMPLR_PREFIX="+prefix)); err != nil {
		return err
	}
	return writes.AppendFile(configSite, []byte("\nCROSS_COMPILER_TARGET_ARCHS += "+target))
}

// configureHostCompiler pins CC and CCC for gcc and clang, keeping any
// version suffix such as "gcc-8".
func (d *Driver) configureHostCompiler(base string) error {
	m := compilerPattern.FindStringSubmatch(d.ci.Compiler)
	if m == nil {
		return nil
	}
	name, suffix := m[1], m[2]
	siteFile := filepath.Join(base, "configure", "os", "CONFIG_SITE.Common."+d.env.Get(hostArchVar))
	writes := d.session.Writes()

	switch name {
	case "clang":
		d.print.Println("Host compiler clang")
		content := fmt.Sprintf("\nGNU         = NO\nCMPLR_CLASS = clang\nCC          = clang%s\nCCC         = clang++%s", suffix, suffix)
		if err := writes.AppendFile(siteFile, []byte(content)); err != nil {
			return err
		}
		return writes.AppendFile(filepath.Join(base, "configure", "CONFIG.gnuCommon"), []byte("\nCMPLR_CLASS = clang"))
	case "gcc":
		d.print.Println("Host compiler gcc")
		content := fmt.Sprintf("\nCC          = gcc%s\nCCC         = g++%s", suffix, suffix)
		return writes.AppendFile(siteFile, []byte(content))
	}
	return nil
}

// toolVersions prints the versions of make, perl and the compiler.
func (d *Driver) toolVersions(ctx context.Context) error {
	d.print.Heading("%s = %s", hostArchVar, d.env.Get(hostArchVar))

	d.print.Heading("$ %s --version", d.cfg.Make)
	if err := d.runMake(ctx, makeRun{targets: []string{"--version"}}); err != nil {
		return err
	}

	versionCmds := []Command{{Name: "perl", Args: []string{"--version"}}}
	switch {
	case d.ci.IsVisualStudio():
		versionCmds = append(versionCmds, Command{Name: "cl"})
	case d.ci.Compiler != "" && d.ci.Compiler != cictx.Unknown:
		versionCmds = append(versionCmds, Command{Name: d.ci.Compiler, Args: []string{"--version"}})
	}
	for _, cmd := range versionCmds {
		d.print.Heading("$ %s", cmd)
		cmd.Dir = d.workDir
		cmd.Env = d.env.Environ()
		cmd.Stdout = d.stdout
		cmd.Stderr = d.stderr
		if err := d.runner.Run(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// buildDependencies compiles every module flagged for rebuild, in fetch
// order. Output is silenced unless verbose.
func (d *Driver) buildDependencies(ctx context.Context) error {
	d.print.FoldStart("build.dependencies", "Build missing/outdated dependencies")
	for _, r := range d.session.Results() {
		if !r.Rebuild {
			continue
		}
		d.print.Notice("Building dependency %s in %s", r.Descriptor.Name, r.Path)
		if err := d.runMake(ctx, makeRun{dir: r.Path, parallel: d.cfg.Parallel, silent: !d.cfg.Verbose}); err != nil {
			return err
		}
	}
	d.print.FoldEnd("build.dependencies", "Build missing/outdated dependencies")
	return nil
}

// Summary returns one row per fetched module, in fetch order.
func (d *Driver) Summary() []ModuleSummary {
	results := d.session.Results()
	rows := make([]ModuleSummary, 0, len(results))
	for _, r := range results {
		rows = append(rows, ModuleSummary{
			Module:  r.Descriptor.Name,
			Ref:     r.Descriptor.Ref,
			Rebuilt: r.Rebuild,
			Commit:  r.Commit.OneLine(),
		})
	}
	return rows
}

func (d *Driver) printSummary() error {
	p := d.print
	p.Heading("Dependency module information")
	p.Println(p.label.Render(fmt.Sprintf("%-10s %-12s %-11s %s", "Module", "Tag", "Binaries", "Commit")))
	p.Println(strings.Repeat("-", 100))

	for _, row := range d.Summary() {
		status := p.good.Render(fmt.Sprintf("%-11s", "from cache"))
		if row.Rebuilt {
			status = p.notice.Render(fmt.Sprintf("%-11s", "rebuilt"))
		}
		p.Println(fmt.Sprintf("%-10s %-12s %s %s", row.Module, row.Ref, status, row.Commit))
	}

	p.Heading("Contents of %s", deps.ManifestFileName)
	data, err := os.ReadFile(d.session.Manifest().Path())
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	p.Println(strings.TrimSpace(string(data)))
	return nil
}
