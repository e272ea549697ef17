package output

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/hunterino/MiniKeybaord/internal/server/handlers"
)

// JSONFormatter renders status as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatStatus renders a status snapshot as JSON.
func (f *JSONFormatter) FormatStatus(status *handlers.StatusResponse) (string, error) {
	if status == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(status, "", "  ")
	} else {
		data, err = json.Marshal(status)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// YAMLFormatter renders status as YAML.
type YAMLFormatter struct{}

// FormatStatus renders a status snapshot as YAML.
func (f *YAMLFormatter) FormatStatus(status *handlers.StatusResponse) (string, error) {
	if status == nil {
		return "", nil
	}
	data, err := yaml.Marshal(status)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
