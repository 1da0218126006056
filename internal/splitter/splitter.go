// Package splitter slices a PCM WAV file into segments at sample accuracy.
// Segment boundaries are converted from seconds to frame indices against the
// source sample rate, and the source is streamed once in a single forward
// pass, so memory stays flat regardless of input size.
package splitter

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"tracksplit/internal/logging"
)

// Segment is one output slice, bounded in seconds of the source file.
type Segment struct {
	File  string
	Start float64
	End   float64
}

const framesPerChunk = 8192

// Split writes one WAV file per segment into outputDir. Segments are sorted
// by start time and validated before any decoding happens: a segment whose
// end does not exceed its start, or one that overlaps its predecessor, fails
// the whole operation. Segments touching end-to-start are fine. A segment
// extending past the end of the source is truncated with a warning; one
// starting past the end is skipped with a warning.
func Split(inputPath string, outputDir string, segments []Segment, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(segments) == 0 {
		return errors.New("split: no segments")
	}

	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	for i, seg := range ordered {
		if seg.End <= seg.Start {
			return fmt.Errorf("split: segment %s: end %.3f does not exceed start %.3f", seg.File, seg.End, seg.Start)
		}
		if i > 0 && ordered[i-1].End > seg.Start {
			return fmt.Errorf("split: segment %s overlaps %s", seg.File, ordered[i-1].File)
		}
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("split: open %s: %w", inputPath, err)
	}
	defer in.Close()

	decoder := wav.NewDecoder(in)
	if !decoder.IsValidFile() {
		return fmt.Errorf("split: %s is not a valid WAV file", inputPath)
	}
	if err := decoder.FwdToPCM(); err != nil {
		return fmt.Errorf("split: seek to PCM data in %s: %w", inputPath, err)
	}

	rate := int(decoder.SampleRate)
	channels := int(decoder.NumChans)
	bitDepth := int(decoder.BitDepth)
	if rate <= 0 || channels <= 0 {
		return fmt.Errorf("split: %s reports invalid format (rate %d, channels %d)", inputPath, rate, channels)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("split: create output directory: %w", err)
	}

	w := &segmentWriter{
		decoder:  decoder,
		rate:     rate,
		channels: channels,
		bitDepth: bitDepth,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: channels, SampleRate: rate},
			Data:   make([]int, framesPerChunk*channels),
		},
		logger: logger,
	}

	for _, seg := range ordered {
		startFrame := frameIndex(seg.Start, rate)
		endFrame := frameIndex(seg.End, rate)
		if err := w.writeSegment(filepath.Join(outputDir, seg.File), startFrame, endFrame); err != nil {
			return err
		}
		if w.exhausted {
			remaining := remainingAfter(ordered, seg)
			for _, skipped := range remaining {
				logger.Warn("segment starts past end of input, skipping",
					logging.String("file", skipped.File),
					logging.Float64("start", skipped.Start))
			}
			break
		}
	}
	return nil
}

// frameIndex converts a boundary in seconds to a frame index, rounding to
// the nearest frame so boundaries land deterministically.
func frameIndex(seconds float64, rate int) int64 {
	return int64(math.Round(seconds * float64(rate)))
}

func remainingAfter(ordered []Segment, current Segment) []Segment {
	for i, seg := range ordered {
		if seg == current {
			return ordered[i+1:]
		}
	}
	return nil
}

type segmentWriter struct {
	decoder  *wav.Decoder
	rate     int
	channels int
	bitDepth int
	buf      *audio.IntBuffer

	// pos is the index of the next frame the decoder will yield; pending
	// holds frames read past a segment boundary, waiting for the next one.
	pos       int64
	pending   []int
	exhausted bool

	logger *slog.Logger
}

// nextChunk returns the next run of decoded samples, preferring leftovers
// from the previous read. Empty return with exhausted set means EOF.
func (w *segmentWriter) nextChunk() ([]int, error) {
	if len(w.pending) > 0 {
		chunk := w.pending
		w.pending = nil
		return chunk, nil
	}
	if w.exhausted {
		return nil, nil
	}
	n, err := w.decoder.PCMBuffer(w.buf)
	if err != nil {
		return nil, fmt.Errorf("split: decode: %w", err)
	}
	if n == 0 {
		w.exhausted = true
		return nil, nil
	}
	return w.buf.Data[:n], nil
}

func (w *segmentWriter) writeSegment(path string, startFrame, endFrame int64) error {
	// Discard frames up to the segment start.
	for w.pos < startFrame {
		chunk, err := w.nextChunk()
		if err != nil {
			return err
		}
		if chunk == nil {
			w.logger.Warn("segment starts past end of input, skipping",
				logging.String("file", filepath.Base(path)),
				logging.Int64("start_frame", startFrame))
			return nil
		}
		frames := int64(len(chunk) / w.channels)
		if w.pos+frames > startFrame {
			keep := (startFrame - w.pos) * int64(w.channels)
			w.pending = chunk[keep:]
			w.pos = startFrame
			break
		}
		w.pos += frames
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("split: create %s: %w", path, err)
	}
	encoder := wav.NewEncoder(out, w.rate, w.bitDepth, w.channels, 1)

	wrote := int64(0)
	want := endFrame - startFrame
	for wrote < want {
		chunk, err := w.nextChunk()
		if err != nil {
			_ = encoder.Close()
			_ = out.Close()
			return err
		}
		if chunk == nil {
			w.logger.Warn("input ended before segment boundary, output truncated",
				logging.String("file", filepath.Base(path)),
				logging.Int64("frames_written", wrote),
				logging.Int64("frames_wanted", want))
			break
		}
		frames := int64(len(chunk) / w.channels)
		if wrote+frames > want {
			keep := (want - wrote) * int64(w.channels)
			w.pending = chunk[keep:]
			chunk = chunk[:keep]
			frames = want - wrote
		}
		if err := encoder.Write(&audio.IntBuffer{
			Format: &audio.Format{NumChannels: w.channels, SampleRate: w.rate},
			Data:   chunk,
		}); err != nil {
			_ = encoder.Close()
			_ = out.Close()
			return fmt.Errorf("split: write %s: %w", path, err)
		}
		wrote += frames
		w.pos += frames
	}

	if err := encoder.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("split: finalize %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("split: close %s: %w", path, err)
	}
	w.logger.Info("segment written",
		logging.String("file", filepath.Base(path)),
		logging.Int64("frames", wrote))
	return nil
}
