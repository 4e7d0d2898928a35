package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/heraldhq/herald/internal/dlq"
	"github.com/heraldhq/herald/internal/event"
)

// dlqCmd represents the dlq command
var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay dead letters",
	Long:  `List terminally failed deliveries, show their letters, and replay them.`,
}

// dlqListCmd represents the dlq list command
var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters",
	Long: `List dead letters, optionally filtered by channel, event type or state.

Example:
  heraldctl dlq list --channel chat --state exhausted --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		eventType, _ := cmd.Flags().GetString("event-type")
		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		pool, cleanup, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		store := dlq.NewPGStore(pool)
		letters, err := store.List(ctx, dlq.Filter{
			Channel:   channel,
			EventType: eventType,
			State:     state,
			Limit:     limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list dead letters: %w", err)
		}

		if outputJSON {
			printOutput(letters)
			return nil
		}
		if len(letters) == 0 {
			fmt.Println("No dead letters found")
			return nil
		}
		for _, l := range letters {
			fmt.Printf("%s  %-10s %-9s attempts=%d  %s\n",
				l.Task.ID, l.Task.Channel, l.State, l.Attempts, l.Task.Event.EventType)
			if l.ReplayedAt != "" {
				fmt.Printf("  replayed at %s\n", l.ReplayedAt)
			}
		}
		fmt.Printf("\n%d dead letter(s)\n", len(letters))
		return nil
	},
}

// dlqShowCmd represents the dlq show command
var dlqShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show one dead letter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		pool, cleanup, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		l, err := dlq.NewPGStore(pool).Get(ctx, args[0])
		if err != nil {
			return err
		}

		if outputJSON {
			printOutput(l)
			return nil
		}
		fmt.Printf("Task: %s\n", l.Task.ID)
		fmt.Printf("  Event: %s (%s)\n", l.Task.Event.ID, l.Task.Event.EventType)
		fmt.Printf("  Channel: %s -> %s\n", l.Task.Channel, l.Task.Destination)
		fmt.Printf("  State: %s after %d attempt(s)\n", l.State, l.Attempts)
		fmt.Printf("  Reason: %s\n", l.Reason)
		if l.ReplayedAt != "" {
			fmt.Printf("  Replayed: %s\n", l.ReplayedAt)
		}
		return nil
	},
}

// dlqReplayCmd represents the dlq replay command
var dlqReplayCmd = &cobra.Command{
	Use:   "replay [task-id]",
	Short: "Replay a dead letter",
	Long: `Replay a dead letter by republishing its event to the engine, pinned to
the original channel and template. The replayed delivery starts with a
fresh attempt budget.

Example:
  heraldctl dlq replay tsk-00c0ffee00c0ffee`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		pool, cleanup, err := connectDB(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		store := dlq.NewPGStore(pool)
		l, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}

		// pin the event to the failed channel so only that delivery re-runs
		e := l.Task.Event
		e.Channels = []string{l.Task.Channel}
		e.Template = l.Task.Template
		if err := event.Validate(event.Normalize(e)); err != nil {
			return fmt.Errorf("letter holds an invalid event: %w", err)
		}

		producer, err := newProducer()
		if err != nil {
			return err
		}
		defer producer.Stop()

		body, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := producer.Publish(eventTopic, body); err != nil {
			return fmt.Errorf("failed to publish replay: %w", err)
		}
		if err := store.MarkReplayed(ctx, l.Task.ID, time.Now()); err != nil {
			return fmt.Errorf("replay published but not marked: %w", err)
		}

		fmt.Printf("Replayed task %s on channel %s\n", l.Task.ID, l.Task.Channel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqShowCmd)
	dlqCmd.AddCommand(dlqReplayCmd)

	dlqListCmd.Flags().String("channel", "", "filter by channel")
	dlqListCmd.Flags().String("event-type", "", "filter by event type")
	dlqListCmd.Flags().String("state", "", "filter by state (rejected, exhausted)")
	dlqListCmd.Flags().Int("limit", 50, "maximum letters to list")
}
