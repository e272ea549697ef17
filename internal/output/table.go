package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
)

// TableFormatter renders status as an ASCII table.
type TableFormatter struct{}

// FormatStatus renders a status snapshot as a table.
func (f *TableFormatter) FormatStatus(status *handlers.StatusResponse) (string, error) {
	if status == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Component", "Field", "Value"})

	last := ""
	for _, r := range statusRows(status) {
		component := r.component
		if component == last {
			component = ""
		} else {
			if last != "" {
				t.AppendSeparator()
			}
			last = r.component
		}
		t.AppendRow(table.Row{component, r.field, r.value})
	}

	return t.Render(), nil
}
