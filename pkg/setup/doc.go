// SPDX-License-Identifier: MPL-2.0

// Package setup reads layered ".set" setup files into a Settings Store.
//
// A setup file is a line-oriented list of directives:
//
//	# comment
//	include <name>
//	KEY=VALUE
//
// Files are located by searching an ordered list of directories for
// "<name>.set"; the first match wins. Assignments follow first-write-wins
// semantics: a key already present in the [Store] (or preset in the process
// environment) is never overwritten by a later setup file. Repeated includes
// of the same resolved file are skipped, which makes diamond-shaped include
// graphs safe.
package setup
