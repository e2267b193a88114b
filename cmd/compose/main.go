// Command compose assembles prompt templates against a module bundle
// without a running server.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "compose: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode returns 2 for blocking validation issues and 1 for every other
// failure.
func exitCode(err error) int {
	if errors.Is(err, errBlocking) {
		return 2
	}
	return 1
}
