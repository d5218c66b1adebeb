package commands

import (
	"github.com/spf13/cobra"

	"github.com/elastiflow/searchflow/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search sessions over a websocket at /ws",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.cfg.Server.Addr
			}
			return server.ListenAndServe(cmd.Context(), addr, &server.Handler{
				Characters: app.characters,
				Planets:    app.planets,
				Params:     app.params(),
				Logger:     app.logger,
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}
