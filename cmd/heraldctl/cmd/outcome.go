package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/heraldhq/herald/internal/db"
)

// outcomeCmd represents the outcomes command
var outcomeCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Inspect delivery outcomes",
	Long:  `List recent terminal delivery outcomes recorded by the engine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		pool, cleanup, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		outcomes, err := db.NewPGOutcomeStore(pool).Recent(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list outcomes: %w", err)
		}

		if outputJSON {
			printOutput(outcomes)
			return nil
		}
		if len(outcomes) == 0 {
			fmt.Println("No outcomes found")
			return nil
		}
		for _, o := range outcomes {
			fmt.Printf("%s  %-10s %-9s attempts=%d  %s  %s\n",
				o.TaskID, o.Channel, o.State, o.Attempts, o.EventType,
				o.CompletedAt.Format(time.RFC3339))
			if o.LastError != "" {
				fmt.Printf("  last error: %s\n", o.LastError)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(outcomeCmd)
	outcomeCmd.Flags().Int("limit", 50, "maximum outcomes to list")
}
