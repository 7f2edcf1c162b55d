package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gtdspace/internal"
	pkgconfig "github.com/starford/gtdspace/pkg/config"
)

var version = "dev"

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if ws := cmd.String("workspace"); ws != "" {
		cfg.Workspace.Path = ws
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithOutput(os.Stdout),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func agenda(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunAgenda(ctx, internal.AgendaRequest{
		Start:  cmd.String("start"),
		End:    cmd.String("end"),
		Span:   cmd.String("span"),
		Kinds:  cmd.String("kinds"),
		Habits: cmd.Bool("habits"),
	}, opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func habitReset(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunHabitReset(ctx, opts...)
}

func main() {
	internal.Version = version

	cmd := &cli.Command{
		Name:    "gtdspace",
		Usage:   "GTD workspace of Markdown documents with a calendar, habit tracking and an MCP server",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"w"},
				Usage:   "Workspace root, overrides workspace.path",
				Sources: cli.EnvVars("GTD_WORKSPACE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the workspace watcher and the habit reset loop",
				Action: serve,
			},
			{
				Name:   "agenda",
				Usage:  "Print the calendar for a range of days",
				Action: agenda,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "start", Aliases: []string{"s"}, Usage: "First day, YYYY-MM-DD (default: this week)"},
					&cli.StringFlag{Name: "end", Aliases: []string{"e"}, Usage: "Last day, YYYY-MM-DD"},
					&cli.StringFlag{Name: "span", Usage: "Length when end is omitted, e.g. 3d or 1w2d"},
					&cli.StringFlag{Name: "kinds", Aliases: []string{"k"}, Usage: "Comma-separated subset of due,focus,habit,external"},
					&cli.BoolFlag{Name: "habits", Usage: "Also list habits and their state"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:  "habits",
				Usage: "Habit maintenance",
				Commands: []*cli.Command{
					{
						Name:   "reset",
						Usage:  "Reset habits whose period has elapsed and record missed ones",
						Action: habitReset,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
