//go:build windows

package sumatra

import (
	"os/exec"
	"syscall"
)

// newCommand hands the argument string to CreateProcess untouched, the same
// way SumatraPDF expects to receive it from the shell.
func newCommand(path, args string) *exec.Cmd {
	cmd := exec.Command(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:    syscall.EscapeArg(path) + " " + args,
		HideWindow: true,
	}
	return cmd
}
