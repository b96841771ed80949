package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	facultymcp "github.com/ajitpratap0/facultyhub/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  list_directory     departments, branches, professors and news
  upsert_professor   create or update a professor by email
  delete_professor   delete a professor by ID
  delete_department  IRREVERSIBLE delete of a department and its branches and professors
  list_news          newest stored news items
  fetch_news         run one news ingestion pass

If the store is unavailable at startup the server still starts;
individual tool calls will return MCP error responses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var srv *facultymcp.Server
			st, storeErr := newStore(ctx, logger)
			if storeErr != nil {
				// Log to stderr and continue without a store.
				// Tool calls will return per-call errors rather than crashing.
				logger.Error("mcp: failed to connect to store; tool calls will fail", "error", storeErr)
				srv = facultymcp.NewServer(nil, nil, logger)
			} else {
				defer func() { _ = st.Close() }()
				srv = facultymcp.NewServer(newEngine(st, logger), newIngester(st, logger), logger)
			}

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: facultyhub MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
