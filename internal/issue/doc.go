// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions. The catalog holds Markdown guidance for known failures,
// rendered with glamour by the CLI.
package issue
