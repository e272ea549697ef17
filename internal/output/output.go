// Package output renders server status snapshots for the CLI.
package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formatter renders a status snapshot.
type Formatter interface {
	FormatStatus(status *handlers.StatusResponse) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// row is one line of the tabular renderings.
type row struct {
	component string
	field     string
	value     string
}

func statusRows(s *handlers.StatusResponse) []row {
	rows := []row{
		{"keyboard", "device", s.Keyboard.DeviceName},
		{"keyboard", "connected", yesNo(s.Keyboard.Connected)},
		{"keyboard", "busy", yesNo(s.Keyboard.Busy)},
		{"keyboard", "progress", strconv.Itoa(int(s.Keyboard.Progress)) + "%"},
		{"led", "state", onOff(s.LED.State)},
		{"led", "flashing", yesNo(s.LED.Flashing)},
	}
	if s.Link.Status != "" {
		rows = append(rows, row{"link", "status", s.Link.Status})
		if s.Link.DisconnectedMs > 0 {
			rows = append(rows, row{"link", "down for", formatMillis(s.Link.DisconnectedMs)})
		}
		rows = append(rows, row{"link", "alert", yesNo(s.Link.Alert)})
	}
	rows = append(rows,
		row{"rate limit", "tracked clients", strconv.Itoa(s.RateLimit.Tracked)},
		row{"server", "uptime", (time.Duration(s.Uptime) * time.Second).String()},
	)
	return rows
}

func formatMillis(ms uint32) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
