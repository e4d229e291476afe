// reqlens is a requirement-analysis MCP server and CLI.
package main

import (
	"os"

	"github.com/reqlens/reqlens/cmd/reqlens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
