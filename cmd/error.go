package cmd

import (
	"fmt"
	"os"
)

// Fatal prints an error message to standard error and then terminates the
// process with an error exit code.
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
