//go:build !windows

package pandoc

import "os/exec"

func hideWindow(*exec.Cmd) {}
