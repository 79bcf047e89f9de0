package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/inkwell/internal"
	pkgconfig "github.com/starford/inkwell/pkg/config"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file (defaults apply when it does not exist)",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

func usernameFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "username",
		Aliases:  []string{"u"},
		Usage:    "Account the command acts on",
		Required: true,
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, cmd.String("token"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func resetPassword(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ResetPassword(ctx, cmd.String("username"), cmd.String("password"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := internal.Export(ctx, cmd.String("username"), cmd.String("dir"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	fmt.Printf("exported %d notes to %s\n", n, cmd.String("dir"))
	return nil
}

func importNotes(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := internal.Import(ctx, cmd.String("username"), cmd.String("dir"),
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	fmt.Printf("imported %d notes\n", n)
	return err
}

func main() {
	cmd := &cli.Command{
		Name:   "inkwell",
		Usage:  "Personal notes service with per-user storage, search and a live change feed",
		Action: serve,
		Flags:  []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
				Flags:  []cli.Flag{configFlag()},
			},
			{
				Name:   "mcp",
				Usage:  "Serve one user's notes to an MCP client over stdio",
				Action: mcp,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Bearer token identifying the user",
						Required: true,
						Sources:  cli.EnvVars("INKWELL_TOKEN"),
					},
				},
			},
			{
				Name:   "reset-password",
				Usage:  "Set a new password for an account",
				Action: resetPassword,
				Flags: []cli.Flag{
					configFlag(),
					usernameFlag(),
					&cli.StringFlag{
						Name:     "password",
						Usage:    "New password",
						Required: true,
						Sources:  cli.EnvVars("INKWELL_PASSWORD"),
					},
				},
			},
			{
				Name:   "export",
				Usage:  "Write a user's notes as Markdown files",
				Action: export,
				Flags: []cli.Flag{
					configFlag(),
					usernameFlag(),
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Output directory", Value: "export"},
				},
			},
			{
				Name:   "import",
				Usage:  "Create notes for a user from a directory of Markdown files",
				Action: importNotes,
				Flags: []cli.Flag{
					configFlag(),
					usernameFlag(),
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Input directory", Required: true},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
