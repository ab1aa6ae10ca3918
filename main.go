// codescribe writes generated docstrings and directory overviews into
// Python projects, documenting files in dependency order so that every
// file's documentation is produced with its dependencies' summaries in
// context.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var version = "dev"

var cli struct {
	Config  string `short:"c" help:"YAML configuration file." type:"path"`
	EnvFile string `help:"Env file to load API keys from." default:".env"`
	Verbose bool   `short:"v" help:"Enable verbose logging."`

	Docstrings DocstringsCmd `cmd:"" help:"Generate docstrings for every documentable file in a project."`
	Readmes    ReadmesCmd    `cmd:"" help:"Generate per-directory README.md overviews from module docstrings."`
	Version    VersionCmd    `cmd:"" help:"Print the version and exit."`
}

// appContext is passed to every command's Run method.
type appContext struct {
	ctx    context.Context
	logger *slog.Logger
}

func main() {
	ktx := kong.Parse(&cli,
		kong.Name("codescribe"),
		kong.Description("Generates docstrings and directory overviews for Python projects."),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := ktx.Run(&appContext{ctx: ctx, logger: logger})
	ktx.FatalIfErrorf(err)
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (VersionCmd) Run(*appContext) error {
	fmt.Printf("codescribe %s\n", version)
	return nil
}
