// Command solarcheck works with inspection reports offline: it exports an
// inspection JSON file into the workbook template and applies migrations.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/DukeRupert/solarcheck/internal"
	"github.com/DukeRupert/solarcheck/internal/catalog"
	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/report"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "solarcheck",
		Short:         "Solar inspection report tool",
		Long:          "Fill the PV inspection workbook template from inspection data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return internal.NewLogger(w, "development", level)
}

// =============================================================================
// export
// =============================================================================

type exportOptions struct {
	inspection string
	template   string
	out        string
	prefix     string
	timeout    time.Duration
}

func exportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an inspection into the workbook template",
		Long: "Read an inspection JSON document, fill the template with it and write " +
			"the workbook to the output directory. The template is a file path or an http(s) URL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runExport(cmd.Context(), opts, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.inspection, "inspection", "i", "", "inspection JSON file (- for stdin)")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "template workbook path or URL")
	cmd.Flags().StringVarP(&opts.out, "out", "o", ".", "output directory")
	cmd.Flags().StringVar(&opts.prefix, "prefix", report.DefaultFilenamePrefix, "filename prefix")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "template download timeout")
	_ = cmd.MarkFlagRequired("inspection")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

// runExport writes the workbook and returns its path.
func runExport(ctx context.Context, opts exportOptions, logger *slog.Logger) (string, error) {
	in, err := readInspection(opts.inspection)
	if err != nil {
		return "", err
	}
	if err := catalog.Populate(&in); err != nil {
		return "", fmt.Errorf("load catalogs: %w", err)
	}

	var source report.TemplateSource = report.FileTemplateSource{Path: opts.template}
	if strings.HasPrefix(opts.template, "http://") || strings.HasPrefix(opts.template, "https://") {
		source = report.NewHTTPTemplateSource(opts.template, opts.timeout)
	}

	out, err := report.NewExporter(source, opts.prefix, logger).Export(ctx, in, in.MergedDefects())
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(opts.out, out.Filename)
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}

	logger.Info("Workbook written", "path", path, "size", out.Size())
	return path, nil
}

func readInspection(path string) (domain.Inspection, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.Inspection{}, fmt.Errorf("read inspection: %w", err)
	}

	in := *domain.NewInspection()
	if err := json.Unmarshal(raw, &in); err != nil {
		return domain.Inspection{}, domain.Wrap(err, domain.EINVALID, "cli.read_inspection", "Inspection file is not valid JSON: "+err.Error())
	}
	return in, nil
}

// =============================================================================
// catalog
// =============================================================================

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print an empty inspection populated from the catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := domain.NewInspection()
			if err := catalog.Populate(in); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(in)
		},
	}
}

// =============================================================================
// migrate
// =============================================================================

func migrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("--database or DATABASE_URL is required")
			}
			db, err := sql.Open("pgx", databaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()

			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("database ping failed: %w", err)
			}
			if err := internal.RunMigrations(cmd.Context(), db, newLogger(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	return cmd
}
