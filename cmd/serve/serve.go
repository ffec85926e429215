// Package serve implements the web UI command.
package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/birdsong-go/birdsong/internal/api"
	"github.com/birdsong-go/birdsong/internal/app"
)

// Command creates the serve command.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		Long:  `Start the upload form and JSON API. The model is loaded once and shared by all requests.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, ctx)
		},
	}

	cmd.Flags().StringP("listen", "l", "", "Address to listen on, e.g. :8080")
	cmd.Flags().String("max-upload", "", "Maximum upload size, e.g. 25M")
	cobra.CheckErr(ctx.Viper.BindPFlag("webserver.listen", cmd.Flags().Lookup("listen")))
	cobra.CheckErr(ctx.Viper.BindPFlag("webserver.maxuploadsize", cmd.Flags().Lookup("max-upload")))

	return cmd
}

func run(cmd *cobra.Command, ctx *app.Context) error {
	svc, err := app.New(ctx.Settings, app.Options{Metrics: true})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	server, err := api.New(ctx.Settings,
		api.WithIdentifier(svc.Pipeline),
		api.WithLabels(svc.Labels),
		api.WithMetrics(svc.Metrics),
		api.WithBuildInfo(ctx.BuildInfo),
		api.WithProviderName(svc.Locator.Name()),
	)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("birdsong %s listening on %s\n", ctx.BuildInfo.GetVersion(), ctx.Settings.WebServer.Listen)
	return server.Run(runCtx)
}
