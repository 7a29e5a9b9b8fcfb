// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/epics-base/epics-ci/internal/cictx"
)

const hostArchVar = "EPICS_HOST_ARCH"

// Tool locations preinstalled on the Windows CI images.
const (
	strawberrySiteBin = `C:\Strawberry\perl\site\bin`
	strawberryBin     = `C:\Strawberry\perl\bin`
	mingw32Root       = `C:\mingw-w64\i686-6.3.0-posix-dwarf-rt_v5-rev1\mingw32`
	mingw64Root       = `C:\mingw-w64\x86_64-8.1.0-posix-seh-rt_v6-rev0\mingw64`
)

// setupForBuild locates the base, detects the host architecture and base
// capabilities, and prepares the child environment. It runs once per Driver.
func (d *Driver) setupForBuild(ctx context.Context) error {
	if d.ready {
		return nil
	}

	d.windowsToolPaths()

	base, err := d.locateBase()
	if err != nil {
		return err
	}
	d.basePlace = base

	if err := d.detectHostArch(ctx); err != nil {
		return err
	}

	if d.ci.IsWindows() {
		if err := d.addDLLPaths(); err != nil {
			return err
		}
	}

	d.isBase314 = fileContains(filepath.Join(base, "configure", "CONFIG_BASE_VERSION"), "BASE_3_14=YES")
	if !d.isBase314 {
		d.hasTestResults = hasLinePrefix(filepath.Join(base, "configure", "RULES_BUILD"), "test-results:")
	}

	version, err := d.runner.Output(ctx, Command{
		Name: d.cfg.Make,
		Args: []string{"-v"},
		Env:  d.env.Environ(),
	})
	if err != nil {
		return fmt.Errorf("failed to query make version: %w", err)
	}
	d.isMake3 = strings.HasPrefix(version, "GNU Make 3")

	d.env.Set("TOP", d.workDir)

	var extra []string
	for _, p := range d.addPaths {
		expanded, err := d.env.Expand(p)
		if err != nil {
			return fmt.Errorf("--add-path: %w", err)
		}
		extra = append(extra, expanded)
	}
	d.env.AppendPath(extra...)

	d.extraArgs = nil
	for _, name := range extraMakeVars {
		if v, ok := d.env.Lookup(name); ok {
			d.extraArgs = append(d.extraArgs, v)
		}
	}

	d.ready = true
	return nil
}

// locateBase returns the base location: the project itself when building
// base, otherwise the root dependency's manifest entry.
func (d *Driver) locateBase() (string, error) {
	if place, ok := d.session.RootPlace(); ok {
		return place, nil
	}
	place, found, err := d.session.Manifest().Lookup(d.session.RootVarName())
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s has no %s entry, run 'epics-ci prepare' first",
			ErrNotPrepared, d.session.Manifest().Path(), d.session.RootVarName())
	}
	return place, nil
}

// detectHostArch sets EPICS_HOST_ARCH unless the environment already does.
// Windows targets follow from the compiler and platform; everything else
// asks the base's EpicsHostArch.pl.
func (d *Driver) detectHostArch(ctx context.Context) error {
	if d.env.Get(hostArchVar) != "" {
		return nil
	}

	if arch := windowsHostArch(d.ci.OS, d.ci.Compiler, d.ci.Platform, d.ci.Static, d.ci.Debug); arch != "" {
		d.env.Set(hostArchVar, arch)
		return nil
	}

	d.logger.Debugf("Running script to detect EPICS host architecture in %s", d.basePlace)
	d.env.Set(hostArchVar, "unknown")
	for _, script := range []string{
		filepath.Join(d.basePlace, "src", "tools", "EpicsHostArch.pl"),
		filepath.Join(d.basePlace, "startup", "EpicsHostArch.pl"),
	} {
		if !isFile(script) {
			continue
		}
		out, err := d.runner.Output(ctx, Command{Name: "perl", Args: []string{script}, Env: d.env.Environ()})
		if err != nil {
			return fmt.Errorf("failed to detect host architecture: %w", err)
		}
		d.env.Set(hostArchVar, strings.TrimSpace(out))
		d.logger.Debugf("%s returned: %s", script, d.env.Get(hostArchVar))
		break
	}
	return nil
}

// windowsHostArch maps a Windows toolchain to its EPICS_HOST_ARCH. There is
// no combined static debug target; static wins and debug is configured in
// CONFIG_SITE instead.
func windowsHostArch(osName, compiler, platform string, static, debug bool) string {
	if osName != "windows" {
		return ""
	}
	switch {
	case strings.HasPrefix(compiler, "vs"):
		suffix := ""
		if debug {
			suffix = "-debug"
		}
		if static {
			suffix = "-static"
		}
		switch platform {
		case "x86":
			return "win32-x86" + suffix
		case "x64":
			return "windows-x64" + suffix
		}
	case compiler == "gcc":
		switch platform {
		case "x86":
			return "win32-x86-mingw"
		case "x64":
			return "windows-x64-mingw"
		}
	}
	return ""
}

// windowsToolPaths puts the CI image's perl and MinGW toolchains on PATH.
func (d *Driver) windowsToolPaths() {
	if !d.ci.IsWindows() {
		return
	}
	switch d.ci.Service {
	case cictx.ServiceAppVeyor:
		switch d.ci.Compiler {
		case "vs2019":
			d.env.PrependPath(strawberrySiteBin, strawberryBin)
		case "gcc":
			root := ""
			switch d.ci.Platform {
			case "x86":
				root = mingw32Root
			case "x64":
				root = mingw64Root
			}
			if root != "" {
				include := root + `\include`
				if cur := d.env.Get("INCLUDE"); cur != "" {
					include += string(os.PathListSeparator) + cur
				}
				d.env.Set("INCLUDE", include)
				d.env.PrependPath(root + `\bin`)
			}
		}
	case cictx.ServiceTravis:
		d.env.PrependPath(strawberrySiteBin, strawberryBin)
	}
}

// addDLLPaths puts the binary directories of every dependency and of the
// project in front of PATH, so tests find their DLLs.
func (d *Driver) addDLLPaths() error {
	arch := d.env.Get(hostArchVar)
	var dirs []string
	if !d.session.BuildingBase() {
		entries, err := d.session.Manifest().Entries()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if bin := filepath.Join(filepath.FromSlash(e.Value), "bin", arch); isDir(bin) {
				dirs = append(dirs, bin)
			}
		}
	}
	if bin := filepath.Join(d.workDir, "bin", arch); isDir(bin) {
		dirs = append(dirs, bin)
	}
	d.env.PrependPath(dirs...)
	d.logger.Debugf("DLL paths added to PATH: %s", strings.Join(dirs, string(os.PathListSeparator)))
	return nil
}

func fileContains(path, needle string) bool {
	data, err := os.ReadFile(path)
	return err == nil && strings.Contains(string(data), needle)
}

func hasLinePrefix(path, prefix string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), prefix) {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
