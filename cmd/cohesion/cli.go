package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/cohesion/internal/config"
	"github.com/hpungsan/cohesion/internal/errors"
	"github.com/hpungsan/cohesion/internal/host"
	"github.com/hpungsan/cohesion/internal/host/local"
	"github.com/hpungsan/cohesion/internal/ops"
	"github.com/hpungsan/cohesion/internal/panel"
	"github.com/hpungsan/cohesion/internal/request"
	"github.com/hpungsan/cohesion/internal/scoring"
	"github.com/hpungsan/cohesion/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.App {
	app := &cli.App{
		Name:    "cohesion",
		Usage:   "Score how well a row's items fit its category",
		Version: Version,
		Commands: []*cli.Command{
			importCmd(db),
			tablesCmd(db),
			useCmd(db),
			recordsCmd(db),
			selectCmd(db),
			fieldsCmd(db, cfg, logger),
			analyzeCmd(db, cfg, logger),
			scoreCmd(cfg, logger),
			doctorCmd(db, cfg, logger),
			serveCmd(db, cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// importCmd creates the import command.
func importCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a table document (YAML or JSON) into the local base",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Name collision mode: error|replace"},
			&cli.BoolFlag{Name: "activate", Aliases: []string{"a"}, Usage: "Make the imported table active"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("file path is required"))
			}
			output, err := ops.Import(c.Context, db, ops.ImportInput{
				Path:     c.Args().First(),
				Mode:     ops.ImportMode(c.String("mode")),
				Activate: c.Bool("activate"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// tablesCmd creates the tables command.
func tablesCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "tables",
		Usage: "List tables in the local base",
		Action: func(c *cli.Context) error {
			output, err := ops.Tables(c.Context, db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// useCmd creates the use command.
func useCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Make a table active (clears the row selection)",
		ArgsUsage: "<table>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("table id or name is required"))
			}
			output, err := ops.Use(c.Context, db, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// recordsCmd creates the records command.
func recordsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "records",
		Usage: "List rows of a table (default: the active one)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "table", Aliases: []string{"t"}, Usage: "Table id or name"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultRecordLimit, Usage: "Maximum rows to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Rows to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Records(c.Context, db, ops.RecordsInput{
				Table:  c.String("table"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// selectCmd creates the select command.
func selectCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Select rows of the active table (no ids clears the selection)",
		ArgsUsage: "[record-id...]",
		Action: func(c *cli.Context) error {
			output, err := ops.Select(c.Context, db, c.Args().Slice())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// fieldsCmd creates the fields command.
func fieldsCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "fields",
		Usage: "Wait for the host, then list fields eligible for analysis",
		Action: func(c *cli.Context) error {
			ctrl := panel.NewLocal(db, cfg, cliEnvironment(), logger)
			st, err := ctrl.Init(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(st.Options)
		},
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Score the selected row's items against its category",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Required: true, Usage: "Category field id or name"},
			&cli.StringFlag{Name: "items", Aliases: []string{"i"}, Required: true, Usage: "Items field id or name"},
			&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "Aggregation method: mean|median (default from config)"},
		},
		Action: func(c *cli.Context) error {
			ctrl := panel.NewLocal(db, cfg, cliEnvironment(), logger)
			st, err := panel.AnalyzeOnce(c.Context, ctrl, c.String("category"), c.String("items"), c.String("method"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(st.Result)
		},
	}
}

// scoreCmd creates the score command.
func scoreCmd(cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Score free text without the host (items may be piped via stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Required: true, Usage: "Category text"},
			&cli.StringFlag{Name: "items", Aliases: []string{"i"}, Usage: "Items text, separated by newline , ; or their full-width forms"},
			&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "Aggregation method: mean|median (default from config)"},
		},
		Action: func(c *cli.Context) error {
			items := c.String("items")
			if items == "" && stdinHasData() {
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				items = text
			}

			method := c.String("method")
			if method == "" {
				method = cfg.DefaultMethod
			}
			m, err := request.ParseMethod(method)
			if err != nil {
				return outputError(err)
			}

			req, err := request.FromText(c.String("category"), items, m, "")
			if err != nil {
				return outputError(err)
			}

			client := scoring.NewClient(cfg.ScoringURL, cfg.ScoringTimeout(), logger)
			res, err := client.Score(c.Context, req)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(scoring.Project(req, res))
		},
	}
}

// DoctorOutput is the doctor command's report.
type DoctorOutput struct {
	HostReady      bool   `json:"host_ready"`
	HostError      string `json:"host_error,omitempty"`
	ActiveTable    string `json:"active_table,omitempty"`
	EligibleFields int    `json:"eligible_fields"`
	ScoringURL     string `json:"scoring_url"`
	ScoringHealthy bool   `json:"scoring_healthy"`
	ScoringError   string `json:"scoring_error,omitempty"`
}

// doctorCmd creates the doctor command.
func doctorCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check host readiness and scoring service health",
		Action: func(c *cli.Context) error {
			return outputJSON(runDoctor(c.Context, db, cfg, logger))
		},
	}
}

func runDoctor(ctx context.Context, db *sql.DB, cfg *config.Config, logger *slog.Logger) *DoctorOutput {
	out := &DoctorOutput{ScoringURL: cfg.ScoringURL}

	// A single probe: doctor reports the current state, it doesn't wait.
	if base, ok := local.NewLocator(db).Lookup(ctx); ok {
		out.HostReady = true
		if table, err := base.ActiveTable(ctx); err == nil {
			if t, ok := table.(*local.Table); ok {
				out.ActiveTable = t.Name()
			}
		}
		st, err := panel.NewLocal(db, cfg, cliEnvironment(), logger).Init(ctx)
		if err != nil {
			out.HostError = err.Error()
		}
		out.EligibleFields = len(st.Options)
	} else {
		out.HostError = "no active table; import one with 'cohesion import <file>'"
	}

	client := scoring.NewClient(cfg.ScoringURL, cfg.ScoringTimeout(), logger)
	if err := client.Health(ctx); err != nil {
		out.ScoringError = err.Error()
	} else {
		out.ScoringHealthy = true
	}
	return out
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web panel",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			ctrl := panel.NewLocal(db, cfg, nil, logger)
			srv := web.NewServer(ctrl, db, logger, Version, c.String("bind"), c.Int("port"), cfg.FrameAncestors)
			return web.Run(srv, logger)
		},
	}
}

// Helper functions

// cliEnvironment describes the terminal as the host environment. It never
// matches the host heuristics, so readiness failures classify as generic.
func cliEnvironment() host.Environment {
	return host.StaticEnvironment{URL: "cli://" + hostname(), UserAgent: "cohesion-cli/" + Version}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
