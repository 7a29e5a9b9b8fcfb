// SPDX-License-Identifier: MPL-2.0

// Package driver sequences the CI verbs: prepare, build, test, test-results
// and exec.
//
// Prepare loads setup files, fetches every module through a deps.Session,
// configures the base build system and compiles stale dependencies. The
// other verbs run make (or a user command) against the prepared tree. All
// external processes go through a Runner; make invocations honor the
// configured build timeout.
package driver
