package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/tokenfield/internal/config"
	"github.com/matzehuels/tokenfield/pkg/buildinfo"
	"github.com/matzehuels/tokenfield/pkg/layout"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// Settings come from the config file, TOKENFIELD_* variables and flags;
// they are merged in PersistentPreRunE so every subcommand sees c.Config.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Tokenfield lays out world actors as tokens on a scene",
		Long: `Tokenfield turns every non-player actor of a world into an unlinked token,
packs the tokens onto a scene by size and name, and can file a copy of each
actor in an archive that mirrors the world's folder hierarchy.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			c.Config = cfg
			if cfg.Verbose {
				c.SetLogLevel(LogDebug)
			}
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "config file (default: ./"+config.DefaultConfigFile+" if present)")
	pf.BoolP("verbose", "v", false, "enable verbose logging")
	pf.String("archive", config.DefaultArchive, "archive store: memory:, sqlite:<path> or mongodb://...")
	pf.Bool("no-cache", false, "disable layout caching")
	pf.String("cache-dir", "", "layout cache directory (default: XDG cache dir)")
	pf.String("redis", "", "cache layouts in Redis at this URL instead of on disk")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.tokenCommand())
	root.AddCommand(c.archiveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// addLayoutFlags registers the packing flags shared by layout and run.
// Values are read back through the merged config, not bound here.
func addLayoutFlags(fs *pflag.FlagSet) {
	fs.Int("item-gap", layout.DefaultItemGap, "cells between tokens in a row")
	fs.Int("letter-gap", layout.DefaultLetterGroupGap, "cells between first-letter groups")
	fs.Int("row-gap", layout.DefaultRowGap, "cells between rows")
	fs.Int("group-gap", layout.DefaultSizeGroupGap, "cells between size groups")
	fs.Int("size-ceiling", 0, "fold all sizes at or above this into one group (0: off)")
	fs.Bool("allow-partial", false, "place what fits when the scene overflows")
	fs.Int("display-mode", pipeline.DefaultDisplayMode, "token name display mode (0 none, 30 hover, 50 always)")
}
