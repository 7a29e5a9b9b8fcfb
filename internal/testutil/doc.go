// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that fail the test on error
// instead of returning it, plus git repository fixtures built with go-git
// (NewGitRepo) for exercising the fetch engine without a network.
package testutil
