package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tracksplit/internal/config"
	"tracksplit/internal/deps"
	"tracksplit/internal/durcheck"
	"tracksplit/internal/logging"
	"tracksplit/internal/pipeline"
	"tracksplit/internal/runner"
	"tracksplit/internal/suggest"
	"tracksplit/internal/timecode"
	"tracksplit/internal/validate"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var dirFlag string

	cmd := &cobra.Command{
		Use:   "run PIPELINE",
		Short: "Validate and execute a pipeline document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			doc, workingDir, err := loadDocument(args[0], dirFlag)
			if err != nil {
				return err
			}

			statuses := deps.Check(cfg.FFmpegBinary(), cfg.FFprobeBinary())
			if missing := deps.Missing(statuses); len(missing) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderDependencyTable(statuses))
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}

			encoders, err := deps.DetectEncoders(cmd.Context(), cfg.FFmpegBinary())
			if err != nil {
				logger.Warn("encoder detection failed, assuming native encoders", logging.Error(err))
			}

			format, err := resolveFormat(cmd, formatFlag, doc)
			if err != nil {
				return err
			}

			prb, closeCache, err := ctx.newProber(logger)
			if err != nil {
				return err
			}
			if closeCache != nil {
				defer func() { _ = closeCache() }()
			}

			if err := reconcileDurations(cmd, cfg, doc, workingDir, prb, logger); err != nil {
				return err
			}

			result := validate.Validate(doc.Steps, format, workingDir, logger)
			printValidation(cmd, result)
			if !result.Valid {
				return errors.New("pipeline failed validation")
			}

			env := &runner.Env{
				WorkingDir: workingDir,
				FFmpeg:     cfg.FFmpegBinary(),
				Encoders:   encoders,
				Prober:     prb,
				Logger:     logger,
				Progress:   isatty.IsTerminal(os.Stderr.Fd()),
			}
			r := &runner.Runner{Env: env}
			return r.Run(cmd.Context(), runner.Build(doc, format))
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format override, like mp3:320k or flac:16bit")
	cmd.Flags().StringVarP(&dirFlag, "dir", "C", "", "Working directory (defaults to the pipeline document's directory)")
	return cmd
}

// loadDocument parses the pipeline file and resolves the working directory:
// an explicit --dir wins, otherwise the document's own directory is used.
func loadDocument(path, dirFlag string) (*pipeline.Document, string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, "", err
	}
	doc, err := pipeline.Load(expanded)
	if err != nil {
		return nil, "", err
	}

	workingDir := filepath.Dir(expanded)
	if strings.TrimSpace(dirFlag) != "" {
		workingDir, err = config.ExpandPath(dirFlag)
		if err != nil {
			return nil, "", err
		}
	}
	return doc, workingDir, nil
}

// resolveFormat picks the output format once per run. A --format override
// wins outright; otherwise a terminal always gets the numbered selection
// with the document default pre-picked, and a non-interactive run falls back
// to that default.
func resolveFormat(cmd *cobra.Command, flag string, doc *pipeline.Document) (pipeline.SelectedFormat, error) {
	if strings.TrimSpace(flag) != "" {
		return pipeline.ParseFormatString(flag, doc.Formats)
	}
	if !doc.HasTranscodeStep() {
		return pipeline.SelectedFormat{}, nil
	}
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return pipeline.SelectFormat(cmd.InOrStdin(), cmd.OutOrStdout(), doc.Formats)
	}
	if format, ok := pipeline.DefaultFormat(doc.Formats); ok {
		return format, nil
	}
	return pipeline.SelectedFormat{}, errors.New("no output format: pass --format or declare a default in the pipeline document")
}

// reconcileDurations runs the duration check and, on failure, one repair
// cycle through the file suggester followed by a single re-check.
func reconcileDurations(cmd *cobra.Command, cfg *config.Config, doc *pipeline.Document, workingDir string, prb prober, logger *slog.Logger) error {
	tolerance := cfg.Reconcile.DurationTolerance
	result := durcheck.Check(cmd.Context(), doc.Steps, workingDir, tolerance, prb, logger)
	printDurationChecks(cmd, result)
	if result.Valid {
		return nil
	}

	suggester := &suggest.Suggester{
		Prober:    prb,
		Confirmer: suggest.ForTerminal(os.Stdin.Fd(), cmd.InOrStdin(), cmd.OutOrStdout()),
		Pattern:   cfg.Reconcile.ScanPattern,
		Tolerance: tolerance,
		Logger:    logger,
	}

	repaired := false
	for _, check := range result.Checks {
		if check.Valid {
			continue
		}
		suggestion, ok, err := suggester.Suggest(cmd.Context(), workingDir, check)
		if err != nil {
			return err
		}
		if ok && doc.SetExtractInput(suggestion.StepIndex, suggestion.NewInput) {
			repaired = true
		}
	}
	if !repaired {
		return errors.New("duration reconciliation failed")
	}

	// One re-check only; a second failure aborts the run.
	result = durcheck.Check(cmd.Context(), doc.Steps, workingDir, tolerance, prb, logger)
	printDurationChecks(cmd, result)
	if !result.Valid {
		return errors.New("duration reconciliation failed after substitution")
	}
	return nil
}

func printDurationChecks(cmd *cobra.Command, result durcheck.Result) {
	if len(result.Checks) == 0 && len(result.Errors) == 0 {
		return
	}
	if len(result.Checks) > 0 {
		rows := make([][]string, 0, len(result.Checks))
		for _, check := range result.Checks {
			status := "ok"
			if !check.Valid {
				status = "FAIL"
			}
			rows = append(rows, []string{
				strconv.Itoa(check.StepIndex + 1),
				check.InputFile,
				check.ExpectedDuration,
				timecode.Format(check.ActualSeconds, 3),
				fmt.Sprintf("%.1fs", check.DifferenceSeconds),
				status,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Step", "Input", "Expected", "Actual", "Diff", "Status"},
			rows, 0, 2, 3, 4))
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", msg)
	}
}

func printValidation(cmd *cobra.Command, result validate.Result) {
	for _, msg := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", msg)
	}
	for _, msg := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
	}
}

func renderDependencyTable(statuses []deps.Status) string {
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		resolved := status.Path
		if !status.Available() {
			resolved = status.Err.Error()
		}
		rows = append(rows, []string{status.Name, status.Command, resolved})
	}
	return renderTable([]string{"Tool", "Command", "Resolved"}, rows)
}
