// SPDX-License-Identifier: MPL-2.0

// Package deps resolves, fetches and records the dependencies declared in
// setup files.
//
// All state of one run lives in a [Session]: the Settings Store filled by the
// setup loader, the cache root, the Location Manifest and the list of
// dependencies that must be rebuilt. A Session is constructed per CLI
// invocation (and per test case) and is not safe for concurrent use.
//
// # Resolution
//
// [Session.Resolve] completes a [Descriptor] for a dependency name from
// environment overrides, setup-file values and computed defaults.
//
// # Fetching
//
// [Session.Ensure] guarantees a checkout of the declared ref exists in the
// cache. A cache entry "<dirname>-<ref>" is reused when its "checked_out"
// marker matches the checkout's head commit; otherwise it is removed and
// cloned again. Version-control failures are not retried.
//
// # Location Manifest
//
// [Manifest] maintains RELEASE.local, a list of VARNAME=path lines in which
// the root dependency's line is always last.
//
// # Concurrency
//
// One writer per cache root is a precondition. [AcquireCacheLock] enforces it
// with an advisory lock where the platform supports one.
package deps
