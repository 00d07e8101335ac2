// Command smartmarket serves product recommendations, hybrid product search
// and a knowledge base assistant over the command line, HTTP and MCP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driving/cli"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	app := &application{}
	defer app.Close()

	cli.SetVersion(version)
	cli.SetLoader(app.Load)
	cli.SetConfigOpener(openConfigStore)

	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
