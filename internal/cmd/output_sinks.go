package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hunterino/MiniKeybaord/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
	path   string
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

func openSink(cmd *cobra.Command, path string) (*outputSink, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "-" {
		return &outputSink{writer: cmd.OutOrStdout(), close: func() error { return nil }, path: "-"}, nil
	}

	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(trimmed)
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close, path: trimmed}, nil
}

func writeOutput(cmd *cobra.Command, content string) error {
	outPath, _ := cmd.Flags().GetString("out")
	sink, err := openSink(cmd, outPath)
	if err != nil {
		return err
	}
	defer sink.close() //nolint:errcheck

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	_, err = io.WriteString(sink.writer, content)
	return err
}
