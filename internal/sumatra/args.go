package sumatra

import "strings"

// SplitArguments breaks a command line produced by ArgumentString back into
// argv form. Spaces separate arguments unless they are inside double quotes;
// the quotes themselves are dropped. Backslashes are kept literally so UNC
// printer names and Windows paths survive unchanged.
func SplitArguments(cmdline string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		inArg   bool
	)

	for _, r := range cmdline {
		switch {
		case r == '"':
			quoted = !quoted
			inArg = true
		case r == ' ' && !quoted:
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, current.String())
	}
	return args
}
