// SPDX-License-Identifier: MPL-2.0

// Package cictx detects the CI service, operating system, compiler and build
// configuration a run executes in.
package cictx

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode"
)

const (
	// ServiceNone is reported outside of a recognized CI service.
	ServiceNone Service = "<none>"
	// ServiceTravis is Travis CI.
	ServiceTravis Service = "travis"
	// ServiceAppVeyor is AppVeyor.
	ServiceAppVeyor Service = "appveyor"
	// ServiceGitHubActions is GitHub Actions.
	ServiceGitHubActions Service = "github-actions"

	// Unknown is used for fields the environment does not reveal.
	Unknown = "<unknown>"
)

type (
	// Service identifies a CI service.
	Service string

	// LookupEnvFunc has the signature of os.LookupEnv.
	LookupEnvFunc func(key string) (string, bool)

	// Context is the detected build context. It is read-only after Detect.
	Context struct {
		Service  Service
		OS       string
		Platform string
		Compiler string
		Static   bool
		Debug    bool
		// Configuration is "static" or "shared" followed by "-debug" or
		// "-optimized".
		Configuration string
		// Test is false when TEST=NO.
		Test bool
		// Choco, Apt and Brew list host packages to install.
		Choco []string
		Apt   []string
		Brew  []string
		// Warnings collects detection problems worth reporting.
		Warnings []string
	}
)

// DetectFromEnv is Detect with the process environment.
func DetectFromEnv() *Context {
	return Detect(os.LookupEnv)
}

// Detect inspects the environment through lookupEnv.
func Detect(lookupEnv LookupEnvFunc) *Context {
	env := func(key string) string {
		v, _ := lookupEnv(key)
		return v
	}
	has := func(key string) bool {
		_, ok := lookupEnv(key)
		return ok
	}

	c := &Context{
		Service:  ServiceNone,
		OS:       Unknown,
		Platform: Unknown,
		Compiler: Unknown,
		Test:     true,
		Choco:    []string{"make"},
	}

	var buildConfig string
	switch {
	case has("TRAVIS"):
		c.Service = ServiceTravis
		c.OS = env("TRAVIS_OS_NAME")
		c.Platform = "x64"
		c.Compiler = env("TRAVIS_COMPILER")
		if c.OS == "windows" {
			c.Choco = append(c.Choco, "strawberryperl")
			if strings.HasPrefix(c.Compiler, "vs") {
				// only Visual Studio 2017 is installed on Travis
				c.Compiler = "vs2017"
			}
		}
		buildConfig = env("BCFG")

	case has("APPVEYOR"):
		c.Service = ServiceAppVeyor
		image := env("APPVEYOR_BUILD_WORKER_IMAGE")
		switch {
		case strings.HasPrefix(image, "Visual"):
			c.OS = "windows"
		case strings.HasPrefix(image, "Ubuntu"):
			c.OS = "linux"
		case strings.HasPrefix(image, "macOS"):
			c.OS = "osx"
		}
		c.Platform = strings.ToLower(env("PLATFORM"))
		if compiler, ok := lookupEnv("CMP"); ok {
			c.Compiler = compiler
		}
		buildConfig = env("CONFIGURATION")

	case has("GITHUB_ACTIONS"):
		c.Service = ServiceGitHubActions
		c.OS = runnerOS(env("RUNNER_OS"))
		c.Platform = runnerPlatform(env("RUNNER_ARCH"))
		c.Compiler = defaultCompiler(c.OS)
		if compiler, ok := lookupEnv("CMP"); ok && compiler != "" {
			c.Compiler = compiler
		}
		buildConfig = env("BCFG")
	}

	if has("STATIC") {
		c.Warnings = append(c.Warnings, "Variable 'STATIC' not supported anymore; use 'BCFG' instead")
	}
	c.applyBuildConfig(buildConfig)

	if strings.EqualFold(env("TEST"), "NO") {
		c.Test = false
	}

	c.Choco = appendFields(c.Choco, env("CHOCO"))
	c.Apt = appendFields(c.Apt, env("APT"))
	c.Brew = appendFields(c.Brew, env("BREW"))
	return c
}

// applyBuildConfig parses tokens like "static-debug" and sets Configuration.
func (c *Context) applyBuildConfig(raw string) {
	tokens := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == '-' || r == ',' || unicode.IsSpace(r)
	})
	for _, tok := range tokens {
		switch tok {
		case "static":
			c.Static = true
		case "shared", "dynamic":
			c.Static = false
		case "debug":
			c.Debug = true
		case "optimized", "default", "release":
			c.Debug = false
		default:
			c.Warnings = append(c.Warnings, fmt.Sprintf("Unrecognized build configuration setting '%s'", tok))
		}
	}

	link := "shared"
	if c.Static {
		link = "static"
	}
	opt := "-optimized"
	if c.Debug {
		opt = "-debug"
	}
	c.Configuration = link + opt
}

// IsWindows reports whether the build runs on Windows.
func (c *Context) IsWindows() bool { return c.OS == "windows" }

// IsVisualStudio reports whether the compiler is a Visual Studio version.
func (c *Context) IsVisualStudio() bool { return strings.HasPrefix(c.Compiler, "vs") }

// String summarizes the context for the host information banner.
func (c *Context) String() string {
	return fmt.Sprintf("%s compiler on %s (%s) hosted by %s", c.Compiler, c.OS, c.Platform, c.Service)
}

func runnerOS(v string) string {
	switch strings.ToLower(v) {
	case "linux":
		return "linux"
	case "windows":
		return "windows"
	case "macos":
		return "osx"
	default:
		return Unknown
	}
}

func runnerPlatform(v string) string {
	switch strings.ToUpper(v) {
	case "", "X64":
		return "x64"
	case "X86":
		return "x86"
	case "ARM64":
		return "arm64"
	case "ARM":
		return "arm"
	default:
		return strings.ToLower(v)
	}
}

func defaultCompiler(osName string) string {
	switch osName {
	case "linux":
		return "gcc"
	case "osx":
		return "clang"
	case "windows":
		return "vs2019"
	default:
		return Unknown
	}
}

func appendFields(list []string, raw string) []string {
	for _, f := range strings.Fields(raw) {
		if !slices.Contains(list, f) {
			list = append(list, f)
		}
	}
	return list
}
