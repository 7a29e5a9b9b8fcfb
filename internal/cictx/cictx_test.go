// SPDX-License-Identifier: MPL-2.0

package cictx

import (
	"maps"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func envMap(env map[string]string) LookupEnvFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func with(base map[string]string, extra map[string]string) map[string]string {
	out := maps.Clone(base)
	maps.Copy(out, extra)
	return out
}

var travisLinux = map[string]string{
	"TRAVIS":          "true",
	"TRAVIS_OS_NAME":  "linux",
	"TRAVIS_COMPILER": "gcc",
}

func TestDetectNoService(t *testing.T) {
	t.Parallel()

	got := Detect(envMap(nil))
	want := &Context{
		Service:       ServiceNone,
		OS:            Unknown,
		Platform:      Unknown,
		Compiler:      Unknown,
		Configuration: "shared-optimized",
		Test:          true,
		Choco:         []string{"make"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Detect() mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectTravis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		env               map[string]string
		wantOS            string
		wantCompiler      string
		wantStatic        bool
		wantDebug         bool
		wantConfiguration string
		wantChoco         []string
	}{
		{"linux gcc", travisLinux, "linux", "gcc", false, false, "shared-optimized", []string{"make"}},
		{"linux clang", with(travisLinux, map[string]string{"TRAVIS_COMPILER": "clang"}), "linux", "clang", false, false, "shared-optimized", []string{"make"}},
		{"bcfg shared", with(travisLinux, map[string]string{"BCFG": "shared"}), "linux", "gcc", false, false, "shared-optimized", []string{"make"}},
		{"bcfg static", with(travisLinux, map[string]string{"BCFG": "static"}), "linux", "gcc", true, false, "static-optimized", []string{"make"}},
		{"bcfg debug", with(travisLinux, map[string]string{"BCFG": "debug"}), "linux", "gcc", false, true, "shared-debug", []string{"make"}},
		{"bcfg static-debug", with(travisLinux, map[string]string{"BCFG": "static-debug"}), "linux", "gcc", true, true, "static-debug", []string{"make"}},
		{"windows gcc", with(travisLinux, map[string]string{"TRAVIS_OS_NAME": "windows"}), "windows", "gcc", false, false, "shared-optimized", []string{"make", "strawberryperl"}},
		{"windows vs2017", with(travisLinux, map[string]string{"TRAVIS_OS_NAME": "windows", "TRAVIS_COMPILER": "vs2017"}), "windows", "vs2017", false, false, "shared-optimized", []string{"make", "strawberryperl"}},
		{"windows vs2019 becomes vs2017", with(travisLinux, map[string]string{"TRAVIS_OS_NAME": "windows", "TRAVIS_COMPILER": "vs2019"}), "windows", "vs2017", false, false, "shared-optimized", []string{"make", "strawberryperl"}},
		{"osx clang", with(travisLinux, map[string]string{"TRAVIS_OS_NAME": "osx", "TRAVIS_COMPILER": "clang"}), "osx", "clang", false, false, "shared-optimized", []string{"make"}},
		{"extra choco", with(travisLinux, map[string]string{"TRAVIS_OS_NAME": "windows", "CHOCO": "llvm make"}), "windows", "gcc", false, false, "shared-optimized", []string{"make", "strawberryperl", "llvm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Detect(envMap(tt.env))
			if c.Service != ServiceTravis {
				t.Errorf("Service = %q, want travis", c.Service)
			}
			if c.OS != tt.wantOS || c.Compiler != tt.wantCompiler || c.Platform != "x64" {
				t.Errorf("OS/Compiler/Platform = %s/%s/%s, want %s/%s/x64", c.OS, c.Compiler, c.Platform, tt.wantOS, tt.wantCompiler)
			}
			if c.Static != tt.wantStatic || c.Debug != tt.wantDebug {
				t.Errorf("Static/Debug = %v/%v, want %v/%v", c.Static, c.Debug, tt.wantStatic, tt.wantDebug)
			}
			if c.Configuration != tt.wantConfiguration {
				t.Errorf("Configuration = %q, want %q", c.Configuration, tt.wantConfiguration)
			}
			if diff := cmp.Diff(tt.wantChoco, c.Choco); diff != "" {
				t.Errorf("Choco mismatch (-want +got):\n%s", diff)
			}
			if len(c.Warnings) != 0 {
				t.Errorf("unexpected warnings: %v", c.Warnings)
			}
		})
	}
}

func TestDetectAppVeyor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		image  string
		wantOS string
	}{
		{"Visual Studio 2019", "windows"},
		{"Ubuntu1804", "linux"},
		{"macOS", "osx"},
	}
	for _, tt := range tests {
		c := Detect(envMap(map[string]string{
			"APPVEYOR":                    "True",
			"APPVEYOR_BUILD_WORKER_IMAGE": tt.image,
			"PLATFORM":                    "X64",
			"CMP":                         "vs2019",
			"CONFIGURATION":               "dynamic-debug",
		}))
		if c.Service != ServiceAppVeyor || c.OS != tt.wantOS {
			t.Errorf("image %q: Service/OS = %s/%s, want appveyor/%s", tt.image, c.Service, c.OS, tt.wantOS)
		}
		if c.Platform != "x64" || c.Compiler != "vs2019" {
			t.Errorf("image %q: Platform/Compiler = %s/%s", tt.image, c.Platform, c.Compiler)
		}
		if c.Configuration != "shared-debug" {
			t.Errorf("image %q: Configuration = %q, want shared-debug", tt.image, c.Configuration)
		}
	}
}

func TestDetectGitHubActions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		env          map[string]string
		wantOS       string
		wantCompiler string
		wantPlatform string
	}{
		{"linux default", map[string]string{"RUNNER_OS": "Linux", "RUNNER_ARCH": "X64"}, "linux", "gcc", "x64"},
		{"macos default", map[string]string{"RUNNER_OS": "macOS", "RUNNER_ARCH": "ARM64"}, "osx", "clang", "arm64"},
		{"windows default", map[string]string{"RUNNER_OS": "Windows"}, "windows", "vs2019", "x64"},
		{"compiler override", map[string]string{"RUNNER_OS": "Linux", "CMP": "clang"}, "linux", "clang", "x64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Detect(envMap(with(map[string]string{"GITHUB_ACTIONS": "true", "BCFG": "static"}, tt.env)))
			if c.Service != ServiceGitHubActions {
				t.Errorf("Service = %q", c.Service)
			}
			if c.OS != tt.wantOS || c.Compiler != tt.wantCompiler || c.Platform != tt.wantPlatform {
				t.Errorf("OS/Compiler/Platform = %s/%s/%s, want %s/%s/%s",
					c.OS, c.Compiler, c.Platform, tt.wantOS, tt.wantCompiler, tt.wantPlatform)
			}
			if c.Configuration != "static-optimized" {
				t.Errorf("Configuration = %q", c.Configuration)
			}
		})
	}
}

func TestDetectTestNo(t *testing.T) {
	t.Parallel()

	if c := Detect(envMap(with(travisLinux, map[string]string{"TEST": "NO"}))); c.Test {
		t.Error("Test = true with TEST=NO")
	}
	if c := Detect(envMap(with(travisLinux, map[string]string{"TEST": "YES"}))); !c.Test {
		t.Error("Test = false with TEST=YES")
	}
}

func TestDetectWarnings(t *testing.T) {
	t.Parallel()

	c := Detect(envMap(with(travisLinux, map[string]string{"STATIC": "YES"})))
	if len(c.Warnings) != 1 || !strings.Contains(c.Warnings[0], "Variable 'STATIC' not supported anymore") {
		t.Errorf("Warnings = %v", c.Warnings)
	}

	c = Detect(envMap(with(travisLinux, map[string]string{"BCFG": "static-dubug"})))
	if len(c.Warnings) != 1 || !strings.Contains(c.Warnings[0], "Unrecognized build configuration setting 'dubug'") {
		t.Errorf("Warnings = %v", c.Warnings)
	}
	if !c.Static || c.Debug {
		t.Errorf("Static/Debug = %v/%v, want true/false", c.Static, c.Debug)
	}
}

func TestDetectPackageLists(t *testing.T) {
	t.Parallel()

	c := Detect(envMap(with(travisLinux, map[string]string{"APT": "re2c libreadline-dev", "BREW": "re2c"})))
	if diff := cmp.Diff([]string{"re2c", "libreadline-dev"}, c.Apt); diff != "" {
		t.Errorf("Apt mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"re2c"}, c.Brew); diff != "" {
		t.Errorf("Brew mismatch (-want +got):\n%s", diff)
	}
}
