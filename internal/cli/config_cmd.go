package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// configCommand creates the config command, which prints the merged
// settings.
func (c *CLI) configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration.

Settings are merged from built-in defaults, the config file, TOKENFIELD_*
environment variables (TOKENFIELD_SPACING__ROW sets spacing.row) and flags,
later sources winning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(keyValueTable(c.Config.Describe()))
			return nil
		},
	}
}
