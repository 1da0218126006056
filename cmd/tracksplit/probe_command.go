package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tracksplit/internal/config"
	"tracksplit/internal/media/ffprobe"
	"tracksplit/internal/timecode"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "probe FILE...",
		Short: "Report media durations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			if jsonFlag {
				return probeJSON(cmd, ffprobe.NewClient(cfg.FFprobeBinary()), args)
			}

			prb, closeCache, err := ctx.newProber(logger)
			if err != nil {
				return err
			}
			if closeCache != nil {
				defer func() { _ = closeCache() }()
			}

			rows := make([][]string, 0, len(args))
			var firstErr error
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				seconds, err := prb.Duration(cmd.Context(), path)
				if err != nil {
					rows = append(rows, []string{arg, "", err.Error()})
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				rows = append(rows, []string{arg, timecode.Format(seconds, 3), fmt.Sprintf("%.3fs", seconds)})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "Duration", "Seconds"},
				rows, 1, 2))
			return firstErr
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the raw ffprobe JSON payload for each file")
	return cmd
}

// probeJSON runs a full inspection per file and emits the untouched ffprobe
// payload, bypassing the duration cache.
func probeJSON(cmd *cobra.Command, client *ffprobe.Client, args []string) error {
	var firstErr error
	for _, arg := range args {
		path, err := config.ExpandPath(arg)
		if err != nil {
			return err
		}
		result, err := client.Inspect(cmd.Context(), path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		cmd.OutOrStdout().Write(result.RawJSON())
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return firstErr
}
