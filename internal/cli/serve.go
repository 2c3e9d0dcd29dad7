package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/sixmem/internal/api"
	"github.com/rcliao/sixmem/internal/mcp"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Run:   runServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address (default: from config)")
	serveCmd.Flags().Bool("mcp", false, "Also serve MCP over SSE at /mcp/sse")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio",
		Long:  "Serve the build_context, record_episode, search_memory, get_memory and memory_stats tools over stdio.",
		Run:   runMCP,
	}

	RootCmd.AddCommand(serveCmd, mcpCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	withMCP, _ := cmd.Flags().GetBool("mcp")

	cfg := loadConfig()
	if addr != "" {
		cfg.Server.Addr = addr
	}
	log := newLogger(cfg)
	e := openEngineWith(cfg)
	defer e.Close()

	srv := api.NewServer(e, api.Options{
		Addr:        cfg.Server.Addr,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log.With("component", "api"),
	})
	if withMCP {
		m := mcp.NewServer(e, mcp.Options{DefaultUser: getUser(), Logger: log.With("component", "mcp")})
		srv.AddMCPServer(m.MCPServer())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Serve(ctx); err != nil {
		exitErr("serve", err)
	}
}

func runMCP(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	e := openEngineWith(cfg)
	defer e.Close()

	m := mcp.NewServer(e, mcp.Options{DefaultUser: getUser(), Logger: newLogger(cfg).With("component", "mcp")})
	if err := m.Serve(); err != nil {
		exitErr("mcp", err)
	}
}
