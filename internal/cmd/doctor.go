package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hunterino/MiniKeybaord/internal/config"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

// doctorCheck is one diagnostic line. ok=false fails the run; warn marks
// a non-fatal finding.
type doctorCheck struct {
	name   string
	detail string
	ok     bool
	warn   bool
}

func (c doctorCheck) mark() string {
	switch {
	case !c.ok:
		return "❌"
	case c.warn:
		return "⚠️ "
	default:
		return "✅"
	}
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check the runtime, configuration and, when reachable, the local server.
Exits non-zero when a required check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		checks := runDoctorChecks(cmd)

		log := observability.CLILogger
		failed := 0
		lines := make([]string, 0, len(checks)+2)
		for i, c := range checks {
			line := fmt.Sprintf("[%d/%d] %-18s %s %s", i+1, len(checks), c.name, c.mark(), c.detail)
			lines = append(lines, line)
			switch {
			case !c.ok:
				failed++
				log.Error(line, zap.String("check", c.name))
			case c.warn:
				log.Warn(line, zap.String("check", c.name))
			default:
				log.Debug(line, zap.String("check", c.name))
			}
		}

		lines = append(lines, "")
		if failed == 0 {
			lines = append(lines, "All required checks passed.")
		} else {
			lines = append(lines, fmt.Sprintf("%d check(s) failed.", failed))
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(strings.Join(lines, "\n"), 0))

		if failed > 0 {
			return fmt.Errorf("%d diagnostic check(s) failed", failed)
		}
		return nil
	},
}

func runDoctorChecks(cmd *cobra.Command) []doctorCheck {
	var checks []doctorCheck

	goVersion := runtime.Version()
	checks = append(checks, doctorCheck{name: "Go runtime", detail: goVersion + " " + runtime.GOOS + "/" + runtime.GOARCH, ok: true})

	version := crucible.GetVersion()
	checks = append(checks, doctorCheck{
		name:   "Crucible",
		detail: "v" + version.Crucible + ", gofulmen v" + version.Gofulmen,
		ok:     version.Crucible != "" && version.Gofulmen != "",
	})

	configPath := config.DefaultConfigPath()
	switch {
	case configPath == "":
		checks = append(checks, doctorCheck{name: "Config directory", detail: "cannot resolve", ok: true, warn: true})
	case fileExists(configPath):
		checks = append(checks, doctorCheck{name: "Config directory", detail: configPath, ok: true})
	default:
		checks = append(checks, doctorCheck{
			name:   "Config directory",
			detail: filepath.Dir(configPath) + " (no config.yaml; run 'config init')",
			ok:     true,
			warn:   true,
		})
	}

	cfg, err := loadConfig()
	if err != nil {
		checks = append(checks, doctorCheck{name: "Configuration", detail: err.Error()})
		return checks
	}
	checks = append(checks, doctorCheck{name: "Configuration", detail: "valid", ok: true})

	if cfg.Auth.APIKey == "" {
		checks = append(checks, doctorCheck{name: "API key", detail: "not set; commands will be rejected", ok: true, warn: true})
	} else {
		checks = append(checks, doctorCheck{name: "API key", detail: "set", ok: true})
	}

	checks = append(checks, serverCheck(cmd.Context(), cfg))
	return checks
}

// serverCheck probes the configured server. An unreachable server is
// only a warning; doctor is often run before serve.
func serverCheck(ctx context.Context, cfg *config.Config) doctorCheck {
	c, err := newRemoteClientFor(defaultServerURL(), cfg.Auth.APIKey, 2*time.Second)
	if err != nil {
		return doctorCheck{name: "Server", detail: err.Error()}
	}
	status, err := c.Status(ctx)
	if err != nil {
		return doctorCheck{name: "Server", detail: c.BaseURL() + " not reachable", ok: true, warn: true}
	}
	agent := "agent connected"
	if !status.Keyboard.Connected {
		agent = "agent " + status.Link.Status
	}
	return doctorCheck{
		name:   "Server",
		detail: c.BaseURL() + ", " + agent,
		ok:     true,
		warn:   !status.Keyboard.Connected,
	}
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
