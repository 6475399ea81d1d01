package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/signal-site/relay/internal/dlq"
	natsclient "github.com/signal-site/relay/internal/messaging/nats"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Manual-fulfillment queue management",
	Long:  "Inspect and drain records that require operator follow-up",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued records",
	Long:  "List purchases the relay acknowledged but could not fulfill",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		queue, cleanup, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		records, err := queue.List(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		if len(records) == 0 {
			fmt.Println("Queue is empty")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSOURCE\tREASON\tEVENT\tDETAIL")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.Timestamp.Format(time.RFC3339),
				rec.Source,
				rec.Reason,
				rec.EventID,
				rec.Detail,
			)
		}
		return w.Flush()
	},
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, cleanup, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := queue.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read stats: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all queued records",
	Long:  "Delete all queued records. Records are not recoverable after purge.",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return fmt.Errorf("refusing to purge without --yes")
		}

		queue, cleanup, err := openQueue(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if err := queue.Purge(cmd.Context()); err != nil {
			return fmt.Errorf("failed to purge queue: %w", err)
		}
		fmt.Println("Queue purged")
		return nil
	},
}

func openQueue(ctx context.Context) (*dlq.JetStreamQueue, func(), error) {
	js, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:  natsURL,
		Name: "relayctl",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	queue, err := dlq.NewJetStreamQueue(ctx, js)
	if err != nil {
		js.Close()
		return nil, nil, fmt.Errorf("failed to open queue: %w", err)
	}
	return queue, js.Close, nil
}

func init() {
	dlqListCmd.Flags().Int("limit", 100, "maximum records to list")
	dlqListCmd.Flags().Bool("json", false, "output as JSON")
	dlqPurgeCmd.Flags().Bool("yes", false, "confirm the purge")

	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqStatsCmd)
	dlqCmd.AddCommand(dlqPurgeCmd)
	rootCmd.AddCommand(dlqCmd)
}
