package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapsheet/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the table tools over HTTP",
		Long: `Start a local HTTP server exposing every table tool.

Endpoints:
  GET  /tools           Tool catalog with JSON parameter schemas
  POST /tools/{name}    Run a tool; the body holds its arguments
  GET  /tables          Tables and the active selection
  GET  /tables/{table}  Rows of a table; query parameters filter
  GET  /events          Server-sent change events

All clients share one active table. With --watch (the default) changes made
by other leapsheet processes to the same database are announced on /events
as "external" events.`,
		Example: `  leapsheet serve
  leapsheet serve --addr 127.0.0.1:9000
  curl -d '{"name":"Groceries","columns":"item,qty:integer"}' localhost:8787/tools/create_table`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Address to listen on (default: 127.0.0.1:8787)")
	cmd.Flags().Bool("watch", true, "Announce changes made by other processes")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(server.Config{
		Dispatcher:   cc.Dispatcher,
		Addr:         cc.Cfg.Server.Addr,
		Logger:       cc.Logger,
		Watch:        cc.Cfg.Server.Watch,
		DatabasePath: cc.Cfg.DatabasePath,
	})

	cc.Renderer.Info("Serving table tools on http://" + cc.Cfg.Server.Addr)
	cc.Renderer.Muted("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		return err
	}
	cc.Renderer.Muted("Stopped.")
	return nil
}
