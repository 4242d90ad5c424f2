// Command snippet runs JavaScript, Python and HTML/CSS snippets from the
// terminal, or serves the same engine to MCP clients over stdio.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// A failed snippet has already printed its own output.
		if !errors.Is(err, errSnippetFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
