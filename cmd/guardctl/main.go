// Command guardctl runs guardrail checks locally and talks to a guardrail server.
package main

import (
	"errors"
	"fmt"
	"os"

	_ "github.com/okian/guardrail/internal/domain/constraint/fdsolver"
)

// Exit codes.
const (
	exitOK        = 0
	exitViolation = 1
	exitError     = 2
)

// errViolation marks a command that ran but found failed checks.
var errViolation = errors.New("checks failed")

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errViolation):
		return exitViolation
	default:
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return exitError
	}
}
