package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driving/mcp"
)

var (
	mcpPort      int
	mcpScheduler bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve SmartMarket to AI agents over MCP",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Expose the recommend, search and ask tools and the status and manifest
resources to MCP clients.

Without --port the server speaks JSON-RPC on stdin/stdout, which is what
desktop assistants launch. With --port it serves streamable HTTP on /mcp
and a health probe on /healthz.

  smartmarket mcp serve
  smartmarket mcp serve --port 8081

Client entry:
  {"mcpServers": {"smartmarket": {"command": "smartmarket", "args": ["mcp", "serve"]}}}`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "serve streamable HTTP on this port instead of stdio")
	mcpServeCmd.Flags().BoolVar(&mcpScheduler, "scheduler", false, "run scheduled rebuilds and the catalog watcher while serving")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if mcpPort < 0 || mcpPort > 65535 {
		return fmt.Errorf("invalid port %d", mcpPort)
	}

	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(&mcp.Ports{
		Recommend: svc.Recommend,
		Search:    svc.Search,
		Assistant: svc.Assistant,
		Status:    svc.Status,
		Manifest:  svc.Manifest,
	}, mcp.WithVersion(version))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer startBackground(ctx, svc, mcpScheduler, mcpScheduler)()

	if mcpPort == 0 {
		// stdout carries the protocol from here on.
		return server.Run(ctx)
	}
	addr := fmt.Sprintf(":%d", mcpPort)
	fmt.Fprintf(cmd.OutOrStdout(), "MCP on http://localhost%s%s, health on %s\n", addr, mcp.EndpointPath, mcp.HealthPath)
	return server.RunHTTP(ctx, addr)
}
