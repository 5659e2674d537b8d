package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tokenfield/internal/config"
	"github.com/matzehuels/tokenfield/internal/server"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// serveCommand creates the serve command, which runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layout API over HTTP",
		Long: `Serve the layout API over HTTP.

The API previews layouts and builds single tokens from JSON request bodies.
It never reads or writes world files or archives. Layouts share the same
cache as the command line. Stop the server with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx, pipeline.Collaborators{})
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			srv := server.New(server.Config{
				Addr:   c.Config.Server.Addr,
				Runner: runner,
				Logger: c.Logger,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().String("addr", config.DefaultServerAddr, "listen address")
	return cmd
}
