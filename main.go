// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/epics-base/epics-ci/cmd/epics-ci"

func main() {
	cmd.Execute()
}
