package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q, use %s or %s", format, outputText, outputYAML)
	}
}

// render writes v as YAML when requested and otherwise leaves the output to text.
func render(w io.Writer, format string, v interface{}, text func(w io.Writer) error) error {
	if format != outputYAML {
		return text(w)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("cannot render output: %w", err)
	}

	return enc.Close()
}

// table writes tab separated rows as aligned columns.
func table(w io.Writer, header string, rows []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, row)
	}

	return tw.Flush()
}
