package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information. Use --extended for Crucible, Gofulmen and Go
versions, and --remote to ask a running server instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		extended, _ := cmd.Flags().GetBool("extended")
		w := cmd.OutOrStdout()

		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			c, err := newRemoteClient(cmd)
			if err != nil {
				return err
			}
			v, err := c.Version(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "%s %s (%s)\n", v.App.Name, v.App.Version, c.BaseURL())
			if extended {
				_, _ = fmt.Fprintf(w, "Commit: %s\nBuilt: %s\nGo: %s\n", v.App.Commit, v.App.BuildDate, v.App.GoVersion)
				_, _ = fmt.Fprintf(w, "Device: %s\nAgent path: %s\n", v.Keyboard.DeviceName, v.Keyboard.AgentPath)
				_, _ = fmt.Fprintf(w, "\nGofulmen: %s\nCrucible: %s\n", v.Dependencies.Gofulmen, v.Dependencies.Crucible)
			}
			return nil
		}

		writeLocalVersion(w, extended)
		return nil
	},
}

func writeLocalVersion(w io.Writer, extended bool) {
	name := "minikeyboard"
	if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
		name = identity.BinaryName
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", name, versionInfo.Version)
	if !extended {
		return
	}
	_, _ = fmt.Fprintf(w, "Commit: %s\n", versionInfo.Commit)
	_, _ = fmt.Fprintf(w, "Built: %s\n", versionInfo.BuildDate)
	_, _ = fmt.Fprintf(w, "Go: %s\n\n", runtime.Version())

	version := crucible.GetVersion()
	_, _ = fmt.Fprintf(w, "Gofulmen: %s\n", version.Gofulmen)
	_, _ = fmt.Fprintf(w, "Crucible: %s\n", version.Crucible)
}

func init() {
	rootCmd.AddCommand(versionCmd)
	addRemoteFlags(versionCmd)
	versionCmd.Flags().BoolP("extended", "e", false, "show extended version information")
	versionCmd.Flags().Bool("remote", false, "report the version of a running server")
}
