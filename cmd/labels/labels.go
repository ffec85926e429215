// Package labels implements the label map listing command.
package labels

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/birdsong-go/birdsong/internal/app"
	"github.com/birdsong-go/birdsong/internal/species"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Command creates the labels command.
func Command(ctx *app.Context) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the species label map in model output order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lm, err := species.Load(ctx.Settings.Classifier.LabelPath)
			if err != nil {
				return err
			}
			return Write(cmd.OutOrStdout(), lm, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", FormatText, "Output format: text, json, yaml")
	return cmd
}

// Write renders the label map in the given format.
func Write(w io.Writer, lm *species.LabelMap, format string) error {
	switch format {
	case FormatText:
		for i, l := range lm.Labels() {
			if _, err := fmt.Fprintf(w, "%3d  %-10s %s\n", i, l.Code, l.Name); err != nil {
				return err
			}
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lm.Labels())
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(lm.Labels()); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q, use text, json or yaml", format)
	}
}
