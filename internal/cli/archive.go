package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tokenfield/pkg/archive"
	"github.com/matzehuels/tokenfield/pkg/cache"
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
	"github.com/matzehuels/tokenfield/pkg/render"
)

// archiveCommand creates the archive management command.
func (c *CLI) archiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and manage actor archives",
		Long: `Inspect and manage actor archives.

The archive store is chosen with --archive: memory: (the default, gone when
the command exits), sqlite:<path> or a mongodb:// URI.`,
	}

	cmd.AddCommand(c.archiveTreeCommand())
	cmd.AddCommand(c.archiveCreateCommand())
	cmd.AddCommand(c.archiveLockCommand(true))
	cmd.AddCommand(c.archiveLockCommand(false))

	return cmd
}

// archiveTreeCommand creates the "archive tree" subcommand.
func (c *CLI) archiveTreeCommand() *cobra.Command {
	var (
		target string
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show an archive's folders and records",
		Long: `Show an archive's folders and records.

Formats are text (an indented outline), dot (Graphviz source) and svg. With
--out the format follows the file extension; .png and .pdf are converted from
the SVG rendering.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runArchiveTree(cmd.Context(), target, format, output)
		},
	}

	cmd.Flags().StringVar(&target, "target", pipeline.DefaultArchiveTarget, "archive to show")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, dot or svg")
	cmd.Flags().StringVarP(&output, "out", "o", "", "write to a file instead of stdout")

	return cmd
}

func (c *CLI) runArchiveTree(ctx context.Context, target, format, output string) error {
	if output != "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
	}

	store, err := c.openArchive(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := archive.LoadTree(ctx, store, target)
	if err != nil {
		return err
	}
	folders, records := root.Count()
	c.Logger.Debug("loaded archive tree", "target", target, "folders", folders, "records", records)

	var data []byte
	switch format {
	case "text", "txt":
		data = []byte(treeText(root))
	case "dot":
		data = []byte(render.TreeDOT(root))
	case "svg", "png", "pdf":
		svg, err := c.treeSVG(ctx, root)
		if err != nil {
			return err
		}
		if output == "" {
			data = svg
		} else if data, err = render.ForPath(ctx, svg, output); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unknown tree format %q (want text, dot, svg, png or pdf)", format)
	}

	if output == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printSuccess("%s: %d folders, %d records", StyleValue.Render(target), folders, records)
	printFile(output)
	return nil
}

// treeSVG renders an archive tree through Graphviz, reusing a cached
// rendering of identical DOT source.
func (c *CLI) treeSVG(ctx context.Context, root *archive.Node) ([]byte, error) {
	dot := render.TreeDOT(root)

	cc, keyer, err := c.openCache(ctx)
	if err != nil {
		return nil, err
	}
	defer cc.Close()

	key := keyer.ArtifactKey(cache.Hash([]byte(dot)), cache.ArtifactKeyOpts{Kind: "tree", Format: "svg"})
	if svg, ok, err := cc.Get(ctx, key); err == nil && ok {
		c.Logger.Debug("tree cache hit", "key", key)
		return svg, nil
	}

	svg, err := render.RenderDOT(ctx, dot)
	if err != nil {
		return nil, err
	}
	if err := cc.Set(ctx, key, svg, cache.TTLArtifact); err != nil {
		c.Logger.Warn("cache tree rendering", "err", err)
	}
	return svg, nil
}

// archiveCreateCommand creates the "archive create" subcommand.
func (c *CLI) archiveCreateCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "create <scope.name>",
		Short: "Create an empty archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openArchive(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Create(ctx, args[0], kind); err != nil {
				return err
			}
			printSuccess("Created %s archive %s", kind, StyleValue.Render(args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", pipeline.KindActor, "record kind the archive holds")
	return cmd
}

// archiveLockCommand creates the "archive lock" or "archive unlock"
// subcommand.
func (c *CLI) archiveLockCommand(locked bool) *cobra.Command {
	use, short, verb := "unlock", "Allow writes to an archive", "Unlocked"
	if locked {
		use, short, verb = "lock", "Refuse writes to an archive", "Locked"
	}

	return &cobra.Command{
		Use:   use + " <scope.name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.openArchive(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SetLocked(ctx, args[0], locked); err != nil {
				return err
			}
			printSuccess("%s %s", verb, StyleValue.Render(args[0]))
			return nil
		},
	}
}
