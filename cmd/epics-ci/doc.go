// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the epics-ci command tree.
//
// Every command receives an [App], the composition root holding the
// configuration provider, the process environment and the external
// collaborators (git backend, command runner). Tests build an App with
// injected fakes and call [App.Run] instead of going through os.Args.
package cmd
