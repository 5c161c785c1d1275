package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/sitepack/cmd/sitepack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build   commands.BuildCmd `cmd:"" help:"Build the site into the output directory"`
		Serve   commands.ServeCmd `cmd:"" help:"Run the development server and rebuild on change"`
		Clean   commands.CleanCmd `cmd:"" help:"Remove the output directory"`
		Debug   bool              `help:"Enable debug mode."`
		Tracing bool              `help:"Export traces and metrics over OTLP." env:"SITEPACK_TRACING"`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("sitepack"),
		kong.Description("Bundle a static web site with esbuild."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Tracing: cli.Tracing, Version: version})
	cmd.FatalIfErrorf(err)
}
