package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heraldhq/herald/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with the engine configuration",
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a routing configuration file",
	Long: `Parse and validate a herald.yaml: channels, templates, routes and
schedules, including cross-references between them.

Example:
  heraldctl config validate deploy/herald.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := config.LoadFile(args[0])
		if err != nil {
			return err
		}

		if outputJSON {
			printOutput(map[string]int{
				"channels":  len(f.Channels),
				"templates": len(f.Templates),
				"routes":    len(f.Routes),
				"schedules": len(f.Schedules),
			})
			return nil
		}
		fmt.Printf("%s is valid\n", args[0])
		fmt.Printf("  Channels: %d\n", len(f.Channels))
		fmt.Printf("  Templates: %d\n", len(f.Templates))
		fmt.Printf("  Routes: %d\n", len(f.Routes))
		fmt.Printf("  Schedules: %d\n", len(f.Schedules))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
}
