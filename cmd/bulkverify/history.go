package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nao1215/bulkverify/internal/config"
	"github.com/nao1215/bulkverify/internal/database"
	"github.com/nao1215/bulkverify/internal/model"
	"github.com/nao1215/bulkverify/internal/report"
)

// defaultHistoryLimit is how many runs "history list" shows by default.
const defaultHistoryLimit = 20

// errNoHistory is returned when the history database has not been created yet.
var errNoHistory = errors.New("no history yet: run 'bulkverify verify' first")

// NewHistoryCmd creates the history command.
// Its subcommands browse runs stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse previous verification runs",
		Long: `History shows verification runs stored in the local history database.

Runs are identified by their ID. Any unambiguous ID prefix is accepted,
so the 8 characters shown by 'history list' are enough.

Examples:
  # List the latest runs
  bulkverify history list

  # Show the results of one run
  bulkverify history show 1b9d6bcd

  # Write a Markdown report of one run
  bulkverify history show --markdown 1b9d6bcd

  # Export a stored run to CSV again
  bulkverify history export -o again.csv 1b9d6bcd

  # Show every stored verdict of one address
  bulkverify history email alice@example.com

  # Remove a run
  bulkverify history delete 1b9d6bcd`,
	}

	cmd.PersistentFlags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	_ = cmd.PersistentFlags().MarkHidden("db-dir")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryExportCmd())
	cmd.AddCommand(newHistoryEmailCmd())
	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

// openHistory opens the existing history database selected by cmd.
func openHistory(cmd *cobra.Command) (*database.HistoryDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if errors.Is(err, database.ErrNotFound) {
		return nil, errNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// withHistory opens the database, calls fn and closes the database.
func withHistory(cmd *cobra.Command, fn func(ctx context.Context, db *database.HistoryDB) error) error {
	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(cmd.Context(), db)
}

// getRun loads a run by ID or prefix with a readable error.
func getRun(ctx context.Context, db *database.HistoryDB, id string) (*model.Run, error) {
	run, err := db.GetRun(ctx, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("no run matches %q (use 'bulkverify history list' to see IDs)", id)
	case errors.Is(err, database.ErrAmbiguousID):
		return nil, fmt.Errorf("%q matches several runs, use a longer ID", id)
	case err != nil:
		return nil, err
	}
	return run, nil
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List previous runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			return withHistory(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				runs, err := db.ListRuns(ctx, limit)
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}
				return printRunList(cmd.OutOrStdout(), runs)
			})
		},
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to show (0 = all)")

	return cmd
}

// printRunList renders run metadata as a table.
func printRunList(w io.Writer, runs []database.RunMetadata) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Started", "Mode", "File", "Total", "Valid", "Risky", "Invalid")
	for _, r := range runs {
		row := []string{
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			r.Mode,
			r.InputFile,
			strconv.Itoa(r.Summary.Total),
			strconv.Itoa(r.Summary.ValidCount),
			strconv.Itoa(r.Summary.RiskyCount),
			strconv.Itoa(r.Summary.InvalidCount),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the results of a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			markdownOutput, err := cmd.Flags().GetBool("markdown")
			if err != nil {
				return err
			}
			if jsonOutput && markdownOutput {
				return errors.New("--json and --markdown are mutually exclusive")
			}

			return withHistory(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				run, err := getRun(ctx, db, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case jsonOutput:
					_, err = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint()).Write(run)
				case markdownOutput:
					_, err = report.NewMarkdownWriter(out).Write(run)
				default:
					err = printRun(out, run)
				}
				return err
			})
		},
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output the run as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the run as Markdown (mutually exclusive with --json)")

	return cmd
}

// printRun writes the run header, the rich result table and the summary.
func printRun(w io.Writer, run *model.Run) error {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "File:     %s\n", run.InputFile)
	fmt.Fprintf(w, "Mode:     %s\n", run.Mode)
	fmt.Fprintf(w, "Endpoint: %s\n", run.Endpoint)
	fmt.Fprintf(w, "Started:  %s (%s)\n",
		run.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.StartedAt))
	fmt.Fprintf(w, "Duration: %s\n\n", run.Duration())

	table := report.NewTableWriter(w, config.FormatRich,
		report.WithDecorate(true),
		report.WithColor(report.IsTerminal(w)),
	)
	if _, err := table.Write(run); err != nil {
		return err
	}
	printSummary(w, run.Summary)
	return nil
}

func newHistoryExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a previous run to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			switch format {
			case "", config.FormatSimple, config.FormatRich:
			default:
				return config.ErrInvalidFormat
			}

			return withHistory(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				run, err := getRun(ctx, db, args[0])
				if err != nil {
					return err
				}
				if format == "" {
					format = (&config.Config{Mode: run.Mode}).ExportFormat()
				}
				if err := writeCSVFile(output, format, run); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s exported to %s\n", shortID(run.ID), output)
				return nil
			})
		},
	}

	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"CSV export file")
	cmd.Flags().StringP("format", "f", "",
		"CSV export format: simple or rich (default: by the run's mode)")

	return cmd
}

// writeCSVFile writes the results of run to path.
func writeCSVFile(path, format string, run *model.Run) (err error) {
	f, err := createOutputFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", closeErr)
		}
	}()

	if _, err := report.NewCSVWriter(f, format, report.WithStripGlyphs(true)).Write(run); err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}
	return nil
}

func newHistoryEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "email <address>",
		Short: "Show every stored verdict of one address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				records, err := db.EmailHistory(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to look up address: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintf(out, "No verdicts stored for %s.\n", args[0])
					return nil
				}

				table := tablewriter.NewWriter(out)
				table.Header("Run", "Verified", "Status", "Reason")
				for _, rec := range records {
					row := []string{
						shortID(rec.RunID),
						humanize.Time(rec.StartedAt),
						report.Decorate(rec.Result),
						rec.Result.Reason,
					}
					if err := table.Append(row); err != nil {
						return err
					}
				}
				return table.Render()
			})
		},
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				run, err := getRun(ctx, db, args[0])
				if err != nil {
					return err
				}
				if err := db.DeleteRun(ctx, run.ID); err != nil {
					return fmt.Errorf("failed to delete run: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
				return nil
			})
		},
	}
}
