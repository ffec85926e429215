// Package config implements the configuration command.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/birdsong-go/birdsong/internal/app"
	"github.com/birdsong-go/birdsong/internal/conf"
)

const initFlag = "init"

// Command creates the config command. Without flags it prints the effective
// settings; with --init it writes the commented default config file.
func Command(ctx *app.Context) *cobra.Command {
	var initPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration or write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed(initFlag) {
				return writeDefault(cmd, initPath)
			}
			out, err := ctx.Settings.ToYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&initPath, initFlag, defaultInitPath(), "Write the default config file to this path")
	cmd.Flags().Lookup(initFlag).NoOptDefVal = defaultInitPath()
	return cmd
}

// SkipsInitialize reports whether cmd runs without loading settings, so
// --init works even when an existing config file is broken.
func SkipsInitialize(cmd *cobra.Command) bool {
	return cmd.Name() == "config" && cmd.Flags().Changed(initFlag)
}

func writeDefault(cmd *cobra.Command, path string) error {
	if err := conf.WriteDefaultConfig(path); err != nil {
		return err
	}
	cmd.Printf("default configuration written to %s\n", path)
	return nil
}

func defaultInitPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "birdsong", "config.yaml")
	}
	return "config.yaml"
}
