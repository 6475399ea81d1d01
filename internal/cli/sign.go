package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/signal-site/relay/internal/signature"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a payload for the post-published endpoint",
	Long: `Compute the X-Ghost-Signature header value for a payload file.

Useful for exercising the post-published endpoint with curl:

  relayctl sign --secret s3cret --file post.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		file, _ := cmd.Flags().GetString("file")

		if secret == "" {
			return fmt.Errorf("--secret is required")
		}
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		body, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}

		fmt.Printf("%s: %s\n", signature.Header, signature.Sign(body, time.Now(), secret))
		return nil
	},
}

func init() {
	signCmd.Flags().String("secret", "", "webhook signing secret")
	signCmd.Flags().String("file", "", "payload file to sign")
	rootCmd.AddCommand(signCmd)
}
