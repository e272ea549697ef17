package output

import (
	"fmt"
	"strings"

	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
)

// MarkdownFormatter renders status as a markdown table.
type MarkdownFormatter struct{}

// FormatStatus renders a status snapshot as Markdown.
func (f *MarkdownFormatter) FormatStatus(status *handlers.StatusResponse) (string, error) {
	if status == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s status\n\n", escapeMarkdownCell(status.Keyboard.DeviceName)))
	sb.WriteString("| Component | Field | Value |\n")
	sb.WriteString("|-----------|-------|-------|\n")

	for _, r := range statusRows(status) {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdownCell(r.component),
			escapeMarkdownCell(r.field),
			escapeMarkdownCell(r.value),
		))
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
