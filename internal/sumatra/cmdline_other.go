//go:build !windows

package sumatra

import "os/exec"

func newCommand(path, args string) *exec.Cmd {
	return exec.Command(path, SplitArguments(args)...)
}
