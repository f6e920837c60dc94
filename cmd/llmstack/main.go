package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes let calling automation branch on the failure cause.
const (
	exitOK             = 0
	exitFailure        = 1 // usage or unclassified error
	exitConfig         = 2 // configuration invalid or required model missing
	exitStartupFailed  = 3 // a service failed to spawn or become ready
	exitUnexpectedExit = 4 // a running service crashed during steady state
)

// exitError carries a specific process exit code up through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(exitFailure)
	}
}
