package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heraldhq/herald/internal/event"
)

// eventCmd represents the event command
var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Publish notification events",
	Long:  `Publish events onto the engine's inbound topic.`,
}

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish [event-type] [payload-json]",
	Short: "Publish a notification event",
	Long: `Publish an event with a JSON payload.

Example:
  heraldctl event publish order.created '{"order_id":"o-789","message":"Order received"}'
  heraldctl event publish deploy.finished '{"environment":"production"}' --priority high --channels chat,teams`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType := args[0]
		payloadJSON := args[1]

		priority, _ := cmd.Flags().GetString("priority")
		channels, _ := cmd.Flags().GetStringSlice("channels")
		tmpl, _ := cmd.Flags().GetString("template")
		idempotencyKey, _ := cmd.Flags().GetString("idempotency-key")
		source, _ := cmd.Flags().GetString("source")

		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return fmt.Errorf("invalid payload JSON: %w", err)
		}
		if priority != "" && !event.Priority(priority).Valid() {
			return fmt.Errorf("unknown priority %q", priority)
		}

		e := event.Normalize(event.Event{
			EventType:      eventType,
			Source:         source,
			Priority:       event.Priority(priority),
			Payload:        payload,
			Channels:       channels,
			Template:       tmpl,
			IdempotencyKey: idempotencyKey,
		})
		if err := event.Validate(e); err != nil {
			return err
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
			return fmt.Errorf("failed to publish event: %w", err)
		}

		if outputJSON {
			printOutput(e)
		} else {
			fmt.Printf("Published event: %s\n", e.ID)
			fmt.Printf("  Type: %s\n", e.EventType)
			fmt.Printf("  Priority: %s\n", e.Priority)
			fmt.Printf("  Idempotency key: %s\n", e.IdempotencyKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(publishCmd)

	publishCmd.Flags().String("priority", "", "event priority (low, normal, high, critical)")
	publishCmd.Flags().StringSlice("channels", nil, "explicit channels, bypassing the route table")
	publishCmd.Flags().String("template", "", "template name")
	publishCmd.Flags().String("idempotency-key", "", "idempotency key for deduplication")
	publishCmd.Flags().String("source", "heraldctl", "event source")
}
