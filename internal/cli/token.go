package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tokenfield/pkg/pipeline"
	"github.com/matzehuels/tokenfield/pkg/world"
)

// tokenCommand creates the token command, which drops a single unlinked
// token onto a world's scene.
func (c *CLI) tokenCommand() *cobra.Command {
	var req pipeline.TokenRequest

	cmd := &cobra.Command{
		Use:   "token <world>",
		Short: "Place one unlinked token on the scene",
		Long: `Place one unlinked token on the scene.

The token is centred on the grid cell containing (--x, --y) and sized by its
size category: 0-4 fill one cell, 5 two, 6 three, 7 four and 8 six. With
--lantern the token carries a light source. The world file is saved in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runToken(cmd.Context(), args[0], req)
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "token name")
	cmd.Flags().StringVar(&req.Image, "image", "", "token image path")
	cmd.Flags().IntVar(&req.SizeCode, "size", 3, "size category (0 tiny .. 8 gargantuan)")
	cmd.Flags().IntVar(&req.Disposition, "disposition", pipeline.DispositionHostile, "disposition (-2 secret, -1 hostile, 0 neutral, 1 friendly)")
	cmd.Flags().BoolVar(&req.Lantern, "lantern", false, "attach a light source")
	cmd.Flags().Float64Var(&req.ClickX, "x", 0, "x coordinate in pixels")
	cmd.Flags().Float64Var(&req.ClickY, "y", 0, "y coordinate in pixels")

	return cmd
}

// runToken adds a token built from req to the world at path.
func (c *CLI) runToken(ctx context.Context, path string, req pipeline.TokenRequest) error {
	w, err := world.Open(path)
	if err != nil {
		return err
	}
	scene, err := w.Scene(ctx)
	if err != nil {
		return err
	}
	req.GridSize = scene.GridSize

	tok, err := pipeline.NewToken(req)
	if err != nil {
		return err
	}
	created, err := w.CreateTokens(ctx, []pipeline.Token{tok})
	if err != nil {
		return err
	}
	if err := w.Save(); err != nil {
		return fmt.Errorf("save world %s: %w", path, err)
	}

	t := created[0]
	c.Logger.Debug("created token", "id", t.ID, "x", t.X, "y", t.Y, "size", t.Width)
	printSuccess("Placed %s at (%g, %g)", StyleValue.Render(t.Name), t.X, t.Y)
	printFile(path)
	return nil
}
