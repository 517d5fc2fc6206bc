package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sowilo/internal"
	"github.com/starford/sowilo/internal/replay"
	"github.com/starford/sowilo/internal/script"
	pkgconfig "github.com/starford/sowilo/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func importOutline(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	var r io.Reader = os.Stdin
	if path := cmd.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	sum, err := internal.ImportOutline(ctx, r, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%s\t%s\n", sum.ID, sum.Title)
	return nil
}

func exportOutline(ctx context.Context, cmd *cli.Command) error {
	id, err := uuid.Parse(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("note id: %w", err)
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	out, err := internal.ExportOutline(ctx, id, opts...)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runReplay(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("script path is required")
	}
	s, err := script.Load(path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))

	rep, err := replay.Run(s, cfg.Editor.HistoryLimit, logger)
	if rep != nil {
		_, _ = os.Stdout.Write(rep.Outline)
		if cmd.Bool("history") {
			fmt.Fprintf(os.Stderr, "undo: %d (%s)  redo: %d (%s)\n",
				rep.History.Undo, rep.History.UndoName, rep.History.Redo, rep.History.RedoName)
		}
	}
	return err
}

func main() {
	cmd := &cli.Command{
		Name:    "sowilo",
		Usage:   "Outline note editing engine with undo/redo sessions over HTTP and MCP",
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
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and SSE events",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "import",
				Usage:     "Import a Markdown outline into the vault",
				ArgsUsage: "[file.md|-]",
				Action:    importOutline,
			},
			{
				Name:      "export",
				Usage:     "Print a note of the vault as a Markdown outline",
				ArgsUsage: "<note-id>",
				Action:    exportOutline,
			},
			{
				Name:      "replay",
				Usage:     "Apply a YAML edit script to its outline and print the result",
				ArgsUsage: "<script.yaml>",
				Action:    runReplay,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "history",
						Usage: "Print the undo/redo state to stderr",
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
