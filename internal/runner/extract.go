package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"

	"tracksplit/internal/logging"
	"tracksplit/internal/pipeline"
)

type extractStep struct {
	step pipeline.ExtractStep
}

func (s *extractStep) Name() string { return "extract" }

func (s *extractStep) Execute(ctx context.Context, env *Env) error {
	input := env.Resolve(s.step.Input)
	output := env.Resolve(s.step.Output)

	if _, err := os.Stat(input); err != nil {
		return Wrap(ErrNotFound, s.Name(), "prepare", fmt.Sprintf("input %s", s.step.Input), err)
	}

	args := []string{"-y", "-i", input}
	args = append(args, s.step.Args...)
	args = append(args, "-progress", "pipe:1", "-nostats", output)

	var total float64
	if env.Prober != nil {
		if seconds, err := env.Prober.Duration(ctx, input); err == nil {
			total = seconds
		}
	}

	if err := runFFmpeg(ctx, env, args, total, s.step.Output); err != nil {
		return Wrap(ErrExternalTool, s.Name(), "ffmpeg", fmt.Sprintf("extract %s", s.step.Input), err)
	}

	// ffmpeg exiting zero does not guarantee the output landed.
	info, err := os.Stat(output)
	if err != nil {
		return Wrap(ErrExternalTool, s.Name(), "verify", fmt.Sprintf("output %s missing after extraction", s.step.Output), err)
	}
	env.Logger.Info("extraction complete",
		logging.String("output", s.step.Output),
		logging.Int64("size_bytes", info.Size()))
	return nil
}

// runFFmpeg executes ffmpeg with its machine-readable progress stream on
// stdout, feeding a progress bar when a total duration is known.
func runFFmpeg(ctx context.Context, env *Env, args []string, totalSeconds float64, label string) error {
	binary := env.FFmpeg
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open progress pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	var bar *progressbar.ProgressBar
	if env.Progress && totalSeconds > 0 {
		bar = progressbar.NewOptions64(int64(totalSeconds*1000),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		update, ok := parseProgressLine(scanner.Text())
		if !ok {
			continue
		}
		if bar != nil && update.outTimeMS >= 0 {
			_ = bar.Set64(update.outTimeMS)
		}
		if update.done {
			if bar != nil {
				_ = bar.Finish()
			}
		}
		if update.speed != "" {
			env.Logger.Debug("transcoder progress",
				logging.Int64("out_time_ms", update.outTimeMS),
				logging.String("speed", update.speed))
		}
	}

	waitErr := cmd.Wait()
	if bar != nil {
		_ = bar.Close()
	}
	if waitErr != nil {
		return fmt.Errorf("%w: %s", waitErr, tailOf(stderr.String(), 6))
	}
	return nil
}

type progressUpdate struct {
	outTimeMS int64
	speed     string
	done      bool
}

// parseProgressLine parses one key=value line from ffmpeg's -progress
// stream. Lines that carry nothing of interest report ok=false.
func parseProgressLine(line string) (progressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return progressUpdate{}, false
	}
	value = strings.TrimSpace(value)
	update := progressUpdate{outTimeMS: -1}
	switch key {
	case "out_time_ms", "out_time_us":
		// Despite the name, ffmpeg reports both keys in microseconds.
		micros, err := strconv.ParseInt(value, 10, 64)
		if err != nil || micros < 0 {
			return progressUpdate{}, false
		}
		update.outTimeMS = micros / 1000
	case "speed":
		update.speed = value
	case "progress":
		update.done = value == "end"
	default:
		return progressUpdate{}, false
	}
	return update, true
}

// tailOf keeps the last n lines of process output for error messages.
func tailOf(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
