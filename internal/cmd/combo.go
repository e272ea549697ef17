package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hunterino/MiniKeybaord/internal/client"
	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
)

type remoteAction func(ctx context.Context, c *client.Client) (*handlers.SuccessResponse, error)

// runRemoteAction returns a RunE that performs action and prints the
// server's message.
func runRemoteAction(action remoteAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newRemoteClient(cmd)
		if err != nil {
			return err
		}
		resp, err := action(cmd.Context(), c)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	}
}

var comboCmd = &cobra.Command{
	Use:   "combo",
	Short: "Send a key combination",
}

var comboCtrlAltDelCmd = &cobra.Command{
	Use:     "ctrlaltdel",
	Aliases: []string{"cad"},
	Short:   "Send Ctrl+Alt+Delete",
	Args:    cobra.NoArgs,
	RunE: runRemoteAction(func(ctx context.Context, c *client.Client) (*handlers.SuccessResponse, error) {
		return c.CtrlAltDel(ctx)
	}),
}

var comboSleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Send the sleep sequence (GUI+X, then U, then S)",
	Args:  cobra.NoArgs,
	RunE: runRemoteAction(func(ctx context.Context, c *client.Client) (*handlers.SuccessResponse, error) {
		return c.Sleep(ctx)
	}),
}

var ledCmd = &cobra.Command{
	Use:   "led",
	Short: "Control the status LED",
}

var ledToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle the status LED",
	Args:  cobra.NoArgs,
	RunE: runRemoteAction(func(ctx context.Context, c *client.Client) (*handlers.SuccessResponse, error) {
		return c.ToggleLED(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(comboCmd)
	rootCmd.AddCommand(ledCmd)

	for _, sub := range []*cobra.Command{comboCtrlAltDelCmd, comboSleepCmd} {
		addRemoteFlags(sub)
		comboCmd.AddCommand(sub)
	}
	addRemoteFlags(ledToggleCmd)
	ledCmd.AddCommand(ledToggleCmd)
}
