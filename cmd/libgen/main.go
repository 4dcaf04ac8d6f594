// Command libgen generates working code for a named library, grounded in
// that library's documentation and repository. It provides a CLI (via
// Cobra), an HTTP server with SSE progress streaming, and an MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/libgen-go/cmd/libgen/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
