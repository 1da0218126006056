package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tracksplit/internal/pipeline"
	"tracksplit/internal/validate"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var formatFlag string
	var dirFlag string

	cmd := &cobra.Command{
		Use:   "validate PIPELINE",
		Short: "Simulate a pipeline without touching any files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			doc, workingDir, err := loadDocument(args[0], dirFlag)
			if err != nil {
				return err
			}

			format := pipeline.SelectedFormat{}
			if strings.TrimSpace(formatFlag) != "" {
				format, err = pipeline.ParseFormatString(formatFlag, doc.Formats)
				if err != nil {
					return err
				}
			} else if defaultFormat, ok := pipeline.DefaultFormat(doc.Formats); ok {
				format = defaultFormat
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderStepTable(doc.Steps))

			result := validate.Validate(doc.Steps, format, workingDir, logger)
			printValidation(cmd, result)
			if !result.Valid {
				return errors.New("pipeline failed validation")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "pipeline is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "Output format to validate against")
	cmd.Flags().StringVarP(&dirFlag, "dir", "C", "", "Working directory (defaults to the pipeline document's directory)")
	return cmd
}

func renderStepTable(steps []pipeline.Step) string {
	rows := make([][]string, 0, len(steps))
	for i, step := range steps {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(step.Kind()),
			stepSummary(step),
		})
	}
	return renderTable([]string{"#", "Type", "Summary"}, rows, 0)
}

func stepSummary(step pipeline.Step) string {
	switch s := step.(type) {
	case pipeline.ExtractStep:
		return fmt.Sprintf("%s -> %s", s.Input, s.Output)
	case pipeline.SplitStep:
		return fmt.Sprintf("%s into %d segments", s.Input, len(s.Segments))
	case pipeline.TranscodeStep:
		return strings.Join(s.Files, ", ")
	case pipeline.TagStep:
		return fmt.Sprintf("%d tag specs", len(s.Files))
	case pipeline.CleanupStep:
		return strings.Join(s.Targets, ", ")
	default:
		return ""
	}
}
