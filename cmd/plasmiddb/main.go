package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/gallowaylab/plasmiddb/internal"
	"github.com/gallowaylab/plasmiddb/internal/report"
	pkgconfig "github.com/gallowaylab/plasmiddb/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// action adapts a run function to a cli action, loading the config first.
func action(run func(context.Context, ...internal.Option) error, extra func(*cli.Command) ([]internal.Option, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}
		if extra != nil {
			more, err := extra(cmd)
			if err != nil {
				return err
			}
			opts = append(opts, more...)
		}
		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func buildOptions(cmd *cli.Command) ([]internal.Option, error) {
	return []internal.Option{
		internal.WithForceRebuild(cmd.Bool("force-rebuild")),
		internal.WithWatch(cmd.Bool("watch")),
	}, nil
}

func userlintOptions(cmd *cli.Command) ([]internal.Option, error) {
	if cmd.Bool("only-errors") && cmd.Bool("only-warnings") {
		return nil, fmt.Errorf("--only-errors and --only-warnings are mutually exclusive")
	}
	show := report.ShowBoth
	switch {
	case cmd.Bool("only-errors"):
		show = report.ShowErrors
	case cmd.Bool("only-warnings"):
		show = report.ShowWarnings
	}
	return []internal.Option{
		internal.WithReport(report.Options{Show: show, Owners: cmd.StringSlice("user")}),
		internal.WithFromSnapshot(cmd.Bool("from-snapshot")),
	}, nil
}

func main() {
	cmd := &cli.Command{
		Name:    "plasmiddb",
		Usage:   "Lint, index and publish the lab plasmid inventory",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Fetch, lint and index the inventory and render the documentation tree",
				Action: action(internal.Build, buildOptions),
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force-rebuild", Usage: "Clear the rendered pages and rewrite all of them"},
					&cli.BoolFlag{Name: "watch", Usage: "Rebuild whenever the source dump changes (file source only)"},
				},
			},
			{
				Name:   "userlint",
				Usage:  "Print the flagged plasmids of each owner",
				Action: action(internal.UserLint, userlintOptions),
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "only-errors", Usage: "Only print the errors section"},
					&cli.BoolFlag{Name: "only-warnings", Usage: "Only print the warnings section"},
					&cli.StringSliceFlag{Name: "user", Aliases: []string{"u"}, Usage: "Restrict to owner display `NAME` (repeatable)"},
					&cli.BoolFlag{Name: "from-snapshot", Usage: "Re-lint the last stored build instead of fetching"},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the API, live build events and the rendered pages",
				Action: action(internal.Serve, nil),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the lint results as MCP tools over stdio",
				Action: action(internal.ServeMCP, nil),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
