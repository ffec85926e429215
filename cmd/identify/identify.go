// Package identify implements the one-shot identification command.
package identify

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/birdsong-go/birdsong/internal/app"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/myaudio"
	"github.com/birdsong-go/birdsong/internal/pipeline"
	"github.com/birdsong-go/birdsong/pkg/spinner"
)

// Command creates the identify command for a single audio file.
func Command(ctx *app.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "identify [audio file]",
		Short: "Identify the bird in an audio file",
		Long:  `Run the identification pipeline on one file and print the species, the other candidates and an image URL.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, ctx, args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().Int("candidates", 0, "Number of ranked candidates to show")
	cobra.CheckErr(ctx.Viper.BindPFlag("classifier.candidates", cmd.Flags().Lookup("candidates")))

	return cmd
}

func run(cmd *cobra.Command, ctx *app.Context, path string, asJSON bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(fmt.Errorf("error reading audio file: %w", err)).
			Component("identify").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}

	svc, err := app.New(ctx.Settings, app.Options{SkipImageFetch: true})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var spin *spinner.Spinner
	if errOut := cmd.ErrOrStderr(); spinner.IsTerminal(errOut) {
		spin = spinner.New(errOut, "identifying "+filepath.Base(path))
		spin.Start()
	}
	res, err := svc.Pipeline.Identify(runCtx, myaudio.AudioBuffer{Data: data, Filename: filepath.Base(path)})
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	return writeText(cmd.OutOrStdout(), res)
}

func writeText(w io.Writer, res *pipeline.Result) error {
	p := res.Prediction
	if _, err := fmt.Fprintf(w, "Species:    %s (%s)\nConfidence: %.1f%%\n", p.Name, p.Code, p.Confidence*100); err != nil {
		return err
	}

	if len(res.Candidates) > 1 {
		if _, err := fmt.Fprintln(w, "Other candidates:"); err != nil {
			return err
		}
		for i, c := range res.Candidates[1:] {
			if _, err := fmt.Fprintf(w, "  %d. %s (%s) %.1f%%\n", i+2, c.Name, c.Code, c.Confidence*100); err != nil {
				return err
			}
		}
	}

	var err error
	switch {
	case res.ImageURL != "":
		_, err = fmt.Fprintf(w, "Image:      %s\n", res.ImageURL)
	case res.Notice != "":
		_, err = fmt.Fprintln(w, res.Notice)
	}
	return err
}

func writeJSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
