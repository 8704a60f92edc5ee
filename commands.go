package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nconklindev/datasweeper/internal/chart"
	"github.com/nconklindev/datasweeper/internal/config"
	"github.com/nconklindev/datasweeper/internal/logging"
	"github.com/nconklindev/datasweeper/internal/pipeline"
	"github.com/nconklindev/datasweeper/internal/server"
	"github.com/nconklindev/datasweeper/internal/types"
	"github.com/nconklindev/datasweeper/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var errFilesFailed = errors.New("one or more files failed")

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "datasweeper",
		Short: "Convert CSV, Excel, JSON and TXT files with built-in cleaning and charts",
		Long: `Datasweeper previews, cleans, charts and converts tabular files.

Run without arguments for the interactive terminal UI.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(cfg)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("datasweeper %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	root.AddCommand(
		newConvertCmd(cfg),
		newServeCmd(cfg),
	)
	return root
}

// setupLogging points slog at the configured file, or at fallback.
func setupLogging(cfg *config.Config, fallback io.Writer) (func() error, error) {
	w, closeFn, err := logging.Open(cfg.Logging.File, fallback)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, w)
	return closeFn, nil
}

func runUI(cfg *config.Config) error {
	// the terminal belongs to the UI
	closeLog, err := setupLogging(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	p := tea.NewProgram(ui.InitialModel(*cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

func newConvertCmd(cfg *config.Config) *cobra.Command {
	var (
		to      string
		dedupe  bool
		fill    bool
		columns []string
		out     string
		source  string
		withPNG bool
	)

	cmd := &cobra.Command{
		Use:   "convert [files...]",
		Short: "Clean and convert files without the interactive UI",
		Long: `Convert every file to the target format, applying the requested cleaning
first. A file that fails is reported and the rest of the batch continues.

Example: datasweeper convert --to json --dedupe --fill sales.csv data.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := types.ParseFormat(to)
			if err != nil {
				return err
			}
			if source != config.SourceOriginal && source != config.SourceEdited {
				return fmt.Errorf("unknown source %q", source)
			}

			plan := pipeline.Plan{
				Format: format,
				Chart:  withPNG,
				ChartOpts: chart.Options{
					Width:    cfg.Preview.ChartWidth,
					Height:   cfg.Preview.ChartHeight,
					BarWidth: chart.DefaultOptions().BarWidth,
					MaxBars:  cfg.Preview.ChartMaxBars,
				},
			}
			if dedupe {
				plan.Ops = append(plan.Ops, pipeline.OpRemoveDuplicates)
			}
			if fill {
				plan.Ops = append(plan.Ops, pipeline.OpFillMissing)
			}
			if cmd.Flags().Changed("columns") {
				plan.Ops = append(plan.Ops, pipeline.OpSelectColumns)
				plan.Columns = columns
				if plan.Columns == nil {
					plan.Columns = []string{}
				}
			}

			closeLog, err := setupLogging(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			return runConvert(cmd.Context(), cmd.OutOrStdout(), args, out, source == config.SourceEdited, plan)
		},
	}

	cmd.Flags().StringVar(&to, "to", "csv", "Target format: csv, excel, json or txt")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "Remove duplicate rows")
	cmd.Flags().BoolVar(&fill, "fill", false, "Fill missing numeric values with column means")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to keep, comma separated")
	cmd.Flags().StringVar(&out, "out", cfg.Output.Dir, "Output directory")
	cmd.Flags().StringVar(&source, "source", cfg.Output.Source, "Table to export: original or edited")
	cmd.Flags().BoolVar(&withPNG, "chart", false, "Also write a PNG bar chart per file")

	return cmd
}

func runConvert(ctx context.Context, stdout io.Writer, paths []string, out string, exportEdited bool, plan pipeline.Plan) error {
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	uploads, readFailures := pipeline.ReadFiles(paths)
	orch := pipeline.New(pipeline.WithExportEdited(exportEdited), readFailures)
	results := orch.Process(ctx, uploads, plan)

	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(stdout, "✗ %v\n", res.Err)
			continue
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(stdout, "⚠ %s: %s\n", res.Upload.Name, w)
		}

		path := filepath.Join(out, res.Artifact.FileName)
		if err := os.WriteFile(path, res.Artifact.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "✓ %s → %s (%d rows, %d columns)\n", res.Upload.Name, path, res.Details.Rows, res.Details.Columns)

		if res.ChartPNG != nil {
			chartPath := filepath.Join(out, chart.FileName(res.Upload.Name))
			if err := os.WriteFile(chartPath, res.ChartPNG, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", chartPath, err)
			}
			fmt.Fprintf(stdout, "  chart → %s\n", chartPath)
		}
	}

	succeeded := pipeline.Succeeded(results)
	fmt.Fprintf(stdout, "%d of %d files converted\n", succeeded, len(results))
	if err := pipeline.Errors(results); err != nil {
		return fmt.Errorf("%w: %w", errFilesFailed, err)
	}
	return nil
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and conversion API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			closeLog, err := setupLogging(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer closeLog()

			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "Listen address")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(*cfg, version)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
