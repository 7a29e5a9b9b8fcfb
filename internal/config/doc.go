// SPDX-License-Identifier: MPL-2.0

// Package config loads epics-ci tool settings.
//
// Settings are layered with viper: built-in defaults, then an optional CUE
// file validated against the embedded #Config schema, then environment
// variables. Dependency versions are not tool settings; they live in setup
// files handled by pkg/setup.
package config
