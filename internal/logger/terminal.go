package logger

import "github.com/mattn/go-isatty"

// isTerminal reports whether the file descriptor is attached to a
// terminal, so color output can be disabled for pipes and files.
func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
