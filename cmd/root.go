// Package cmd wires the birdsong command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	configcmd "github.com/birdsong-go/birdsong/cmd/config"
	"github.com/birdsong-go/birdsong/cmd/identify"
	"github.com/birdsong-go/birdsong/cmd/labels"
	"github.com/birdsong-go/birdsong/cmd/serve"
	"github.com/birdsong-go/birdsong/internal/app"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "birdsong",
		Short:        "Identify a bird species from an audio recording",
		Version:      ctx.BuildInfo.String(),
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	cobra.CheckErr(setupFlags(rootCmd, ctx))

	rootCmd.AddCommand(
		serve.Command(ctx),
		identify.Command(ctx),
		labels.Command(ctx),
		configcmd.Command(ctx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if configcmd.SkipsInitialize(cmd) {
			return nil
		}
		return ctx.Initialize()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
// and binds them into viper so they override file and environment values.
func setupFlags(rootCmd *cobra.Command, ctx *app.Context) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.ConfigFile, "config", "c", "", "Path to config file (default: ./config.yaml, ~/.config/birdsong, /etc/birdsong)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("log-level", "", "Log level: trace, debug, info, warn, error")
	flags.String("backend", "", "Inference backend: tflite or onnx")
	flags.StringP("model", "m", "", "Path to the model file")
	flags.String("labels", "", "Path to a CSV label file (code,name)")
	flags.String("provider", "", "Image provider: duckduckgo, wikimedia or none")

	bindings := map[string]string{
		"debug":                  "debug",
		"logging.level":          "log-level",
		"classifier.backend":     "backend",
		"classifier.modelpath":   "model",
		"classifier.labelpath":   "labels",
		"imageprovider.provider": "provider",
	}
	for key, flag := range bindings {
		if err := ctx.Viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
