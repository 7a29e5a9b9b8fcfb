// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package driver

import "os/exec"

// terminate kills the child; there is no portable termination request.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
