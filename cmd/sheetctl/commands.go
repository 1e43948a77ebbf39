package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/sheetvault/internal/config"
	"github.com/JonMunkholm/sheetvault/internal/core"
	"github.com/JonMunkholm/sheetvault/internal/database"
	"github.com/JonMunkholm/sheetvault/internal/logging"
	"github.com/JonMunkholm/sheetvault/internal/workbook"
)

var pageFlags = []cli.Flag{
	&cli.IntFlag{Name: "page", Value: 1, Usage: "page number, starting at 1"},
	&cli.IntFlag{Name: "page-size", Usage: "rows per page (default from config)"},
}

// loadConfig reads configuration and sets up logging for a command.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFile(c.String("config"))
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, c.String("log-level"), "text"))
	return cfg, nil
}

// withService connects to the database and runs fn against a service.
func withService(c *cli.Context, fn func(ctx context.Context, svc *core.Service) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	pool, err := database.Connect(c.Context, database.PoolConfig{
		URL:            cfg.Database.URL,
		MaxConns:       4,
		ConnectRetries: cfg.Database.ConnectRetries,
		ConnectBackoff: cfg.Database.ConnectBackoff,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := core.NewService(database.NewStore(pool), core.OptionsFromConfig(cfg))
	return fn(c.Context, svc)
}

func idArg(c *cli.Context, what string) (uuid.UUID, error) {
	if c.NArg() != 1 {
		return uuid.Nil, fmt.Errorf("expected exactly one %s id", what)
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", what, c.Args().First(), err)
	}
	return id, nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "import an .xlsx workbook or a JSON upload payload",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "exclude", Aliases: []string{"x"}, Usage: "worksheet to leave out (repeatable)"},
			&cli.BoolFlag{Name: "include-hidden", Usage: "import hidden worksheets"},
			&cli.StringFlag{Name: "imported-by", Usage: "recorded on the session", EnvVars: []string{"USER"}},
			&cli.StringFlag{Name: "name", Usage: "file name to store (default: the file's base name)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one file")
			}
			req, err := readImportFile(c.Args().First(), workbook.Options{
				FileName:      c.String("name"),
				ImportedBy:    c.String("imported-by"),
				Exclude:       c.StringSlice("exclude"),
				IncludeHidden: c.Bool("include-hidden"),
			})
			if err != nil {
				return err
			}

			return withService(c, func(ctx context.Context, svc *core.Service) error {
				result, err := svc.ImportSheets(ctx, req)
				if err != nil {
					return errors.New(core.FormatUserError(err))
				}
				renderImportResult(c.App.Writer, result)
				return nil
			})
		},
	}
}

// readImportFile builds an ImportRequest from a workbook or a JSON payload.
func readImportFile(path string, opts workbook.Options) (core.ImportRequest, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return core.ImportRequest{}, err
		}
		defer f.Close()
		req, err := core.DecodeImportRequest(f)
		if err != nil {
			return core.ImportRequest{}, fmt.Errorf("%s: %w", path, err)
		}
		if opts.ImportedBy != "" && req.ImportedBy == "" {
			req.ImportedBy = opts.ImportedBy
		}
		return req, nil
	case ".xlsx", ".xlsm":
		return workbook.ReadFile(path, opts)
	default:
		return core.ImportRequest{}, fmt.Errorf("%s: unsupported file type (want .xlsx or .json)", path)
	}
}

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "list import sessions, newest first",
		Flags: pageFlags,
		Action: func(c *cli.Context) error {
			return withService(c, func(ctx context.Context, svc *core.Service) error {
				page, err := svc.ListSessions(ctx, c.Int("page"), c.Int("page-size"))
				if err != nil {
					return err
				}
				renderSessions(c.App.Writer, page)
				return nil
			})
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "show one session with its sheets",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := idArg(c, "session")
			if err != nil {
				return err
			}
			return withService(c, func(ctx context.Context, svc *core.Service) error {
				detail, err := svc.GetSession(ctx, id)
				if err != nil {
					return errors.New(core.FormatUserError(err))
				}
				renderSessionDetail(c.App.Writer, detail)
				return nil
			})
		},
	}
}

func sheetCommand() *cli.Command {
	return &cli.Command{
		Name:      "sheet",
		Usage:     "print the rows of one sheet",
		ArgsUsage: "<sheet-id>",
		Action: func(c *cli.Context) error {
			id, err := idArg(c, "sheet")
			if err != nil {
				return err
			}
			return withService(c, func(ctx context.Context, svc *core.Service) error {
				sheet, err := svc.GetSheet(ctx, id)
				if err != nil {
					return errors.New(core.FormatUserError(err))
				}
				renderSheet(c.App.Writer, sheet)
				return nil
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "find rows containing a term",
		ArgsUsage: "<term>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "session", Usage: "only search this session"},
		}, pageFlags...),
		Action: func(c *cli.Context) error {
			params := core.SearchParams{
				Term:     strings.Join(c.Args().Slice(), " "),
				Page:     c.Int("page"),
				PageSize: c.Int("page-size"),
			}
			if raw := c.String("session"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid session id %q: %w", raw, err)
				}
				params.SessionID = uuid.NullUUID{UUID: id, Valid: true}
			}

			return withService(c, func(ctx context.Context, svc *core.Service) error {
				page, err := svc.Search(ctx, params)
				if err != nil {
					return errors.New(core.FormatUserError(err))
				}
				renderSearch(c.App.Writer, page)
				return nil
			})
		},
	}
}

func errorsCommand() *cli.Command {
	return &cli.Command{
		Name:      "errors",
		Usage:     "list processing errors recorded for a session id",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := idArg(c, "session")
			if err != nil {
				return err
			}
			return withService(c, func(ctx context.Context, svc *core.Service) error {
				perrs, err := svc.ListProcessingErrors(ctx, id)
				if err != nil {
					return err
				}
				renderProcessingErrors(c.App.Writer, perrs)
				return nil
			})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete a session and everything it owns",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := idArg(c, "session")
			if err != nil {
				return err
			}
			return withService(c, func(ctx context.Context, svc *core.Service) error {
				deleted, err := svc.DeleteSession(ctx, id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("session %s not found", id)
				}
				fmt.Fprintf(c.App.Writer, "deleted session %s\n", id)
				return nil
			})
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					return database.MigrateUp(cfg.Database.URL)
				},
			},
			{
				Name:  "down",
				Usage: "revert migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to revert"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					return database.MigrateDown(cfg.Database.URL, c.Int("steps"))
				},
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					version, dirty, err := database.MigrationVersion(cfg.Database.URL)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "version %d", version)
					if dirty {
						fmt.Fprint(c.App.Writer, " (dirty)")
					}
					fmt.Fprintln(c.App.Writer)
					return nil
				},
			},
		},
	}
}
