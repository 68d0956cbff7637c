// Package utils provides some small utility functions.
package utils

import (
	"fmt"
	"io"
)

// Log will format and write the provided message to out if available.
func Log(out io.Writer, format string, args ...any) {
	if out != nil {
		_, _ = fmt.Fprintf(out, "==> "+format+"\n", args...)
	}
}
