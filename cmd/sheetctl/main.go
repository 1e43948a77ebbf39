// Command sheetctl is the operator CLI for sheetvault. It talks to the
// database directly through the same service the HTTP API uses.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "sheetctl",
		Usage: "import and inspect spreadsheet exports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file; environment variables override it",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			importCommand(),
			sessionsCommand(),
			showCommand(),
			sheetCommand(),
			searchCommand(),
			errorsCommand(),
			deleteCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Debug("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
