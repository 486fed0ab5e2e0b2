package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	agmcp "github.com/consultease/adminguard/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes read-only
administrator tools to AI agents: password policy checks, lock status and the
administrator list. No tool records a login attempt or changes an account.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC.
In HTTP mode, the server listens on the specified port using Streamable HTTP.`,
		Example: `  adminguard mcp                            # stdio mode
  adminguard mcp --transport http --port 3001  # HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("transport") {
				transport = viper.GetString("mcp.transport")
			}
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	s := loadSettings()
	// stdout belongs to the protocol in stdio mode.
	logger := newLogger(os.Stderr, s, false)

	store, err := openStore(s)
	if err != nil {
		return fmt.Errorf("init admin store: %w", err)
	}
	defer store.Close()

	authSvc := newAuthService(store, s, logger)
	mcpSrv := agmcp.NewMCPServer(authSvc, versionString(), logger)

	switch transport {
	case "stdio", "":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
