// SPDX-License-Identifier: MPL-2.0

//go:build unix

package driver

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// terminate asks the child to stop with SIGTERM.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Signal(unix.SIGTERM)
}
