package main

import (
	"os"

	"github.com/birdsong-go/birdsong/cmd"
	"github.com/birdsong-go/birdsong/internal/app"
	"github.com/birdsong-go/birdsong/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	ctx := app.NewContext(buildinfo.NewContext(version, buildDate))

	rootCmd := cmd.RootCommand(ctx)
	err := rootCmd.Execute()
	ctx.Shutdown()
	if err != nil {
		os.Exit(1)
	}
}
