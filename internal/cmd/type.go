package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/client"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

// waitPoll is how often --wait polls /status.
const waitPoll = 250 * time.Millisecond

var typeCmd = &cobra.Command{
	Use:   "type [text...]",
	Short: "Type text on the remote keyboard",
	Long: `Queue text for typing on a running server. Arguments are joined with
single spaces; use --stdin to read the text instead.

With --wait the command returns once the keyboard has finished typing.`,
	Example: `  minikeyboard type "hello world"
  echo -n secret | minikeyboard type --stdin --wait`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := typeInput(cmd, args)
		if err != nil {
			return err
		}

		c, err := newRemoteClient(cmd)
		if err != nil {
			return err
		}

		accepted, err := c.Type(cmd.Context(), text)
		if err != nil {
			return err
		}
		observability.CLILogger.Debug("Text accepted", zap.Int("length", accepted.Length))
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), accepted.Message)

		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			return waitUntilIdle(cmd.Context(), cmd.OutOrStdout(), c)
		}
		return nil
	},
}

func typeInput(cmd *cobra.Command, args []string) (string, error) {
	fromStdin, _ := cmd.Flags().GetBool("stdin")
	if fromStdin {
		if len(args) > 0 {
			return "", fmt.Errorf("--stdin cannot be combined with text arguments")
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no text given (pass arguments or --stdin)")
	}
	return strings.Join(args, " "), nil
}

// waitUntilIdle polls until the keyboard is no longer busy.
func waitUntilIdle(ctx context.Context, w io.Writer, c *client.Client) error {
	ticker := time.NewTicker(waitPoll)
	defer ticker.Stop()

	lastProgress := -1
	for {
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		if !status.Keyboard.Busy {
			_, _ = fmt.Fprintln(w, "Done")
			return nil
		}
		if p := int(status.Keyboard.Progress); p != lastProgress {
			_, _ = fmt.Fprintf(w, "Typing... %d%%\n", p)
			lastProgress = p
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	rootCmd.AddCommand(typeCmd)
	addRemoteFlags(typeCmd)
	typeCmd.Flags().Bool("stdin", false, "read the text from stdin")
	typeCmd.Flags().Bool("wait", false, "wait until typing has finished")
}
