package commands

import (
	"fmt"

	"github.com/leapstack-labs/mclineage/internal/ui"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var scanFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded lineage graphs over HTTP",
		Long: `Start an HTTP server exposing the recorded runs:

  GET  /api/graph[?run=<id>]          full graph as JSON
  GET  /api/graph/nodes.csv           node table
  GET  /api/graph/edges.csv           edge table
  GET  /api/graph/lineage/<node>      upstream/downstream closure
  GET  /api/runs, /api/runs/<id>      run history
  POST /api/scan                      rescan the snapshot
  GET  /api/events                    server-sent run notifications
  GET  /healthz

With --watch (default) a local snapshot file is rescanned whenever it changes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := NewCommandContext(cmd)

			eng, err := c.newEngine(true)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if scanFirst {
				if _, err := eng.Run(cmd.Context()); err != nil {
					return fmt.Errorf("initial scan failed: %w", err)
				}
			}

			watchPath := ""
			if c.Cfg.UI.Watch && !isRemote(c.Cfg.Snapshot) {
				watchPath = c.Cfg.Snapshot
			}

			srv, err := ui.NewServer(ui.Config{
				Store:     eng.Store(),
				Scanner:   eng,
				Port:      c.Cfg.UI.Port,
				WatchPath: watchPath,
				Logger:    c.Logger,
			})
			if err != nil {
				return err
			}

			c.Renderer.Success(fmt.Sprintf("Serving lineage on http://localhost:%d", c.Cfg.UI.Port))
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().IntP("port", "p", 8765, "Port to listen on")
	cmd.Flags().Bool("watch", true, "Rescan when the snapshot file changes")
	cmd.Flags().BoolVar(&scanFirst, "scan", true, "Scan once before serving")

	return cmd
}
