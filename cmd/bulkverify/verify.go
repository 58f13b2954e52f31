package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/bulkverify/internal/config"
	"github.com/nao1215/bulkverify/internal/database"
	"github.com/nao1215/bulkverify/internal/log"
	"github.com/nao1215/bulkverify/internal/model"
	"github.com/nao1215/bulkverify/internal/report"
	"github.com/nao1215/bulkverify/internal/session"
	"github.com/nao1215/bulkverify/internal/verifier"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [email-list]",
		Short: "Verify a file of email addresses",
		Long: `Verify reads a file with one email address per line and checks every address
against the verification service.

Blank lines are skipped and surrounding whitespace is trimmed. Results are
printed as a table and exported to a CSV file. Progress is reported on stderr.

Modes:
  batch       upload the whole file in one request (default)
  sequential  one request per address, strictly in input order
  concurrent  one request per address, domains verified in parallel

Examples:
  # Verify a list with the default backend
  bulkverify verify emails.txt

  # Verify one address at a time and export reasons
  bulkverify verify --mode sequential emails.txt

  # Verify domains in parallel, at most 10 requests per second
  bulkverify verify --mode concurrent --workers 8 --rate 10 emails.txt

  # Use another backend and write the CSV elsewhere
  bulkverify verify -e https://verify.example.com/verify -o out/result.csv emails.txt

  # Also print a Markdown summary report
  bulkverify verify --report markdown emails.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: runVerifyCmd,
	}

	// Backend flags
	cmd.Flags().StringP("endpoint", "e", config.DefaultEndpoint,
		"URL of the verification service")
	cmd.Flags().StringP("mode", "m", config.DefaultMode,
		"Verification mode: batch, sequential or concurrent")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout of a single request")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Parallel domain groups in concurrent mode")
	cmd.Flags().Float64P("rate", "r", 0,
		"Maximum requests per second (0 = unlimited)")
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().Bool("precheck", false,
		"Mark syntactically invalid addresses locally without a request")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"CSV export file")
	cmd.Flags().StringP("format", "f", "",
		"CSV export format: simple or rich (default: simple for batch, rich otherwise)")
	cmd.Flags().Bool("no-export", false,
		"Do not write the CSV export")
	cmd.Flags().Bool("no-decorate", false,
		"Show plain statuses in the result table")
	cmd.Flags().String("report", "",
		"Also write a summary report: markdown or json")
	cmd.Flags().String("report-file", "",
		"Write the summary report to a file instead of stdout")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not store this run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	_ = cmd.Flags().MarkHidden("db-dir")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .bulkverify in current or home directory)")

	return cmd
}

// runVerifyCmd executes the verify command.
func runVerifyCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runVerify(ctx, cmd, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getShowEmailsFlag retrieves the show-emails flag from the command or its parent.
func getShowEmailsFlag(cmd *cobra.Command) bool {
	show, err := cmd.Flags().GetBool("show-emails")
	if err != nil {
		show, err = cmd.Root().PersistentFlags().GetBool("show-emails")
		if err != nil {
			return false
		}
	}
	return show
}

// setupLogger creates a masking structured logger on the command's stderr.
func setupLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	return log.NewSecureLogger(cmd.ErrOrStderr(), verbose, getShowEmailsFlag(cmd))
}

// buildConfig creates a Config from defaults, the configuration file and
// cobra command flags, in that order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults if no file found.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if flags.Changed("endpoint") {
		if cfg.Endpoint, err = flags.GetString("endpoint"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("mode") {
		if cfg.Mode, err = flags.GetString("mode"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rate") {
		if cfg.Rate, err = flags.GetFloat64("rate"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("precheck") {
		if cfg.Precheck, err = flags.GetBool("precheck"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output") {
		if cfg.OutputFile, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("format") {
		if cfg.Format, err = flags.GetString("format"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("no-decorate") {
		noDecorate, err := flags.GetBool("no-decorate")
		if err != nil {
			return nil, err
		}
		cfg.Decorate = !noDecorate
	}
	if flags.Changed("no-history") {
		noHistory, err := flags.GetBool("no-history")
		if err != nil {
			return nil, err
		}
		cfg.SaveHistory = !noHistory
	}

	if cfg.ReportFormat, err = flags.GetString("report"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)

	if len(args) > 0 {
		cfg.InputFile = args[0]
	}

	return cfg, nil
}

// newVerifierClient creates the HTTP client for cfg.
func newVerifierClient(cfg *config.Config, logger *slog.Logger) (*verifier.Client, error) {
	return verifier.NewClient(cfg.Endpoint,
		verifier.WithTimeout(cfg.Timeout),
		verifier.WithProxy(cfg.Proxy),
		verifier.WithHeaders(cfg.Headers),
		verifier.WithUserAgent(cfg.UserAgent),
		verifier.WithMaxBodySize(cfg.MaxBodySize),
		verifier.WithRateLimit(cfg.Rate),
		verifier.WithBreakerFailures(cfg.BreakerFailures),
		verifier.WithLogger(logger),
	)
}

// runVerify verifies the input file and writes every requested output.
func runVerify(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting verification",
		"file", cfg.InputFile,
		"mode", cfg.Mode,
		"endpoint", cfg.Endpoint,
		"precheck", cfg.Precheck,
	)

	client, err := newVerifierClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create verification client: %w", err)
	}

	strategy, err := verifier.NewStrategy(cfg.Mode, client, cfg.Workers, logger)
	if err != nil {
		return err
	}

	bar := report.NewProgressBar(cmd.ErrOrStderr())
	sess := session.New(strategy,
		session.WithPrecheck(cfg.Precheck),
		session.WithProgress(bar.Update),
		session.WithEndpoint(cfg.Endpoint),
		session.WithLogger(logger),
	)

	run, err := sess.Verify(ctx, cfg.InputFile)
	if err != nil {
		if verifier.IsOpenCircuit(err) {
			return fmt.Errorf("verification service is failing, stopped early: %w", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	table := report.NewTableWriter(out, cfg.ExportFormat(),
		report.WithDecorate(cfg.Decorate),
		report.WithColor(report.IsTerminal(out)),
	)
	if _, err := table.Write(run); err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	printSummary(out, run.Summary)

	if !noExport(cmd) {
		if err := exportCSV(sess, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Results exported to %s\n", cfg.OutputFile)
	}

	if cfg.ReportFormat != "" {
		if err := writeReport(out, cfg, run); err != nil {
			return err
		}
	}

	if cfg.SaveHistory {
		recordHistory(ctx, out, cfg.DBDir, run, logger)
	}

	return nil
}

// noExport reports whether the CSV export was disabled.
func noExport(cmd *cobra.Command) bool {
	disabled, err := cmd.Flags().GetBool("no-export")
	if err != nil {
		return false
	}
	return disabled
}

// printSummary writes the verdict counts below the result table.
func printSummary(w io.Writer, s model.Summary) {
	fmt.Fprintf(w, "\n%d verified: %d valid, %d risky, %d invalid, %d unknown\n",
		s.Total, s.ValidCount, s.RiskyCount, s.InvalidCount, s.UnknownCount)
	if s.Scored > 0 {
		fmt.Fprintf(w, "Average score: %.1f\n", s.AverageScore)
	}
}

// createOutputFile creates path and its parent directories.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Exports hold the verified addresses, so keep them owner-readable.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// exportCSV writes the session results to the configured CSV file.
func exportCSV(sess *session.Session, cfg *config.Config) (err error) {
	f, err := createOutputFile(cfg.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", closeErr)
		}
	}()

	writer := report.NewCSVWriter(f, cfg.ExportFormat(),
		report.WithStripGlyphs(cfg.StripGlyphs),
	)
	return sess.Export(writer)
}

// writeReport writes the optional summary report to ReportFile or w.
func writeReport(w io.Writer, cfg *config.Config, run *model.Run) (err error) {
	output := w
	if cfg.ReportFile != "" {
		f, err := createOutputFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("failed to close report file: %w", closeErr)
			}
		}()
		output = f
	}

	writer, err := newReportWriter(output, cfg.ReportFormat)
	if err != nil {
		return err
	}
	if _, err := writer.Write(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// newReportWriter returns the summary report writer for format.
func newReportWriter(w io.Writer, format string) (report.Writer, error) {
	switch format {
	case config.ReportMarkdown:
		return report.NewMarkdownWriter(w), nil
	case config.ReportJSON:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint()), nil
	default:
		return nil, config.ErrInvalidReportFormat
	}
}

// recordHistory stores run and mentions the previous run over the same list.
// History is best effort: failures are logged and never fail the command.
func recordHistory(ctx context.Context, w io.Writer, dbDir string, run *model.Run, logger *slog.Logger) {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("history unavailable", "dir", dbDir, "error", err)
		return
	}
	defer db.Close()

	previous, err := db.FindByFingerprint(ctx, run.Fingerprint)
	switch {
	case err != nil:
		logger.Warn("failed to look up previous runs", "error", err)
	case len(previous) > 0:
		last := previous[0]
		fmt.Fprintf(w, "This list was last verified %s (run %s, %d valid of %d).\n",
			humanize.Time(last.StartedAt), shortID(last.ID), last.Summary.ValidCount, last.Summary.Total)
	}

	if err := db.SaveRun(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Warn("failed to save run", "run", run.ID, "error", err)
		return
	}
	logger.Debug("run saved", "run", run.ID, "db", db.Path())
}

// shortID returns the first 8 characters of a run ID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
