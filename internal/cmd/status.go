package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hunterino/MiniKeybaord/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running server",
	Long: `Query GET /status on a running server and render the keyboard, LED,
agent link and rate limiter state.

Formats: table (default), json, yaml, markdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		c, err := newRemoteClient(cmd)
		if err != nil {
			return err
		}

		status, err := c.Status(cmd.Context())
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatStatus(status)
		if err != nil {
			return err
		}
		return writeOutput(cmd, rendered)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	addRemoteFlags(statusCmd)
	statusCmd.Flags().StringP("format", "f", "table", "output format: table, json, yaml, markdown")
	statusCmd.Flags().StringP("out", "o", "", "write output to file instead of stdout")
}
