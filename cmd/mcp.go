package main

import (
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gourmetmcp "github.com/alexisthb/gourrmet-signals-42-sub000/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the enrichment tools over MCP stdio",
	Long: `Starts an MCP server on stdin/stdout. Logs go to stderr; stdout carries
protocol traffic only.

Tools:
  request_enrichment       start enrichment for a signal
  check_enrichment_status  check a task and import finished results
  list_contacts            list stored contacts for a signal`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enrichment")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := gourmetmcp.NewServer(env.Store, env.Requestor, env.Poller, version)

		zap.L().Info("mcp server starting", zap.String("transport", "stdio"))
		return mcpserver.ServeStdio(srv.MCPServer(),
			mcpserver.WithErrorLogger(zap.NewStdLog(zap.L().Named("mcp"))),
		)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
