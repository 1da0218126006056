// Package pipeline models the conversion pipeline document: the ordered
// list of typed steps, the available output formats, and the format the
// operator selected for the run.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Syntax is the schema tag a pipeline document must carry.
const Syntax = "tracksplit"

// SyntaxVersion is the schema version this build understands.
const SyntaxVersion = 1

// Kind identifies a step variant.
type Kind string

const (
	KindExtract   Kind = "extract"
	KindSplit     Kind = "split"
	KindTranscode Kind = "transcode"
	KindTag       Kind = "tag"
	KindCleanup   Kind = "cleanup"
)

// Step is the closed set of pipeline step variants. The concrete types are
// ExtractStep, SplitStep, TranscodeStep, TagStep, and CleanupStep; consumers
// dispatch with a type switch.
type Step interface {
	Kind() Kind
}

// ExtractStep invokes the external transcoder to pull or convert one file
// into another, with the argument list carried verbatim from the document.
type ExtractStep struct {
	Input  string
	Output string
	Args   []string
	// ExpectedDuration, when set, is an h:mm:ss clock string the input is
	// reconciled against before the run starts.
	ExpectedDuration string
}

func (ExtractStep) Kind() Kind { return KindExtract }

// SplitSegment is one timestamp-bounded slice of a Split step. Start and End
// keep the document's strings; the derived offsets are computed when the
// splitter normalizes its segment list, never persisted.
type SplitSegment struct {
	File  string
	Start string
	End   string
}

// SplitStep slices one decoded audio file into many.
type SplitStep struct {
	Input     string
	OutputDir string
	Segments  []SplitSegment
}

func (SplitStep) Kind() Kind { return KindSplit }

// TranscodeStep re-encodes matched files into the selected output format.
type TranscodeStep struct {
	InputDir  string
	OutputDir string
	Files     []string
}

func (TranscodeStep) Kind() Kind { return KindTranscode }

// TagSpec describes the metadata to write onto files matching one pattern.
// All fields are optional; zero values are left untouched.
type TagSpec struct {
	File        string
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Track       int
	TrackTotal  int
	Disk        int
	DiskTotal   int
	Genre       string
	Year        int
	Comment     string
	AlbumArt    string
}

// TagStep writes metadata tags onto matched files.
type TagStep struct {
	InputDir string
	Files    []TagSpec
}

func (TagStep) Kind() Kind { return KindTag }

// CleanupStep deletes files, directories, or glob matches.
type CleanupStep struct {
	Targets []string
}

func (CleanupStep) Kind() Kind { return KindCleanup }

// FormatOption describes one output format the document offers.
type FormatOption struct {
	Format         string   `toml:"format"`
	Bitrates       []string `toml:"bitrates"`
	DefaultBitrate string   `toml:"default_bitrate"`
	BitDepths      []int    `toml:"bit_depths"`
	DefaultDepth   int      `toml:"default_bit_depth"`
}

// Formats lists the output formats a document offers and its default choice.
type Formats struct {
	Available []FormatOption `toml:"available"`
	Default   string         `toml:"default"`
}

// SelectedFormat is the output format resolved once per run, either from a
// CLI override string or interactively, and immutable thereafter.
type SelectedFormat struct {
	Format   string
	Bitrate  string
	BitDepth int
}

// Document is a parsed pipeline document: step order in the document is the
// execution order.
type Document struct {
	Formats Formats
	Steps   []Step
}

// HasTranscodeStep reports whether any step re-encodes output files.
func (d *Document) HasTranscodeStep() bool {
	for _, step := range d.Steps {
		if step.Kind() == KindTranscode {
			return true
		}
	}
	return false
}

// SetExtractInput rewrites the input path of the extract step at the given
// zero-based position; used when a reconciliation repair substitutes a
// source file. It reports whether the step existed and was an extract.
func (d *Document) SetExtractInput(index int, input string) bool {
	if index < 0 || index >= len(d.Steps) {
		return false
	}
	step, ok := d.Steps[index].(ExtractStep)
	if !ok {
		return false
	}
	step.Input = input
	d.Steps[index] = step
	return true
}

// Raw document shapes for TOML decoding; converted into the typed step set
// after the syntax gate passes.
type rawDocument struct {
	Syntax        string    `toml:"syntax"`
	SyntaxVersion int       `toml:"syntax_version"`
	Formats       Formats   `toml:"formats"`
	Steps         []rawStep `toml:"steps"`
}

type rawStep struct {
	Type             string       `toml:"type"`
	Input            string       `toml:"input"`
	Output           string       `toml:"output"`
	Args             []string     `toml:"args"`
	ExpectedDuration string       `toml:"expected_duration"`
	InputDir         string       `toml:"input_dir"`
	OutputDir        string       `toml:"output_dir"`
	Files            []string     `toml:"files"`
	Segments         []rawSegment `toml:"segments"`
	Tags             []rawTagSpec `toml:"tags"`
	Targets          []string     `toml:"targets"`
}

type rawSegment struct {
	File  string `toml:"file"`
	Start string `toml:"start"`
	End   string `toml:"end"`
}

type rawTagSpec struct {
	File        string `toml:"file"`
	Title       string `toml:"title"`
	Artist      string `toml:"artist"`
	Album       string `toml:"album"`
	AlbumArtist string `toml:"album_artist"`
	Track       int    `toml:"track"`
	TrackTotal  int    `toml:"track_total"`
	Disk        int    `toml:"disk"`
	DiskTotal   int    `toml:"disk_total"`
	Genre       string `toml:"genre"`
	Year        int    `toml:"year"`
	Comment     string `toml:"comment"`
	AlbumArt    string `toml:"album_art"`
}

// Load reads and parses a pipeline document. An unrecognized syntax tag or
// unsupported version is a fatal error before any step is considered.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline document: %w", err)
	}
	return Parse(data)
}

// Parse decodes a pipeline document from TOML bytes.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pipeline document: %w", err)
	}

	if raw.Syntax != Syntax {
		return nil, fmt.Errorf("pipeline document: unrecognized syntax %q (expected %q)", raw.Syntax, Syntax)
	}
	if raw.SyntaxVersion != SyntaxVersion {
		return nil, fmt.Errorf("pipeline document: unsupported syntax_version %d (this build supports %d)", raw.SyntaxVersion, SyntaxVersion)
	}
	if len(raw.Steps) == 0 {
		return nil, errors.New("pipeline document: no steps declared")
	}

	doc := &Document{Formats: raw.Formats}
	for i, rs := range raw.Steps {
		step, err := convertStep(rs)
		if err != nil {
			return nil, fmt.Errorf("pipeline document: step %d: %w", i+1, err)
		}
		doc.Steps = append(doc.Steps, step)
	}
	return doc, nil
}

func convertStep(rs rawStep) (Step, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(rs.Type))) {
	case KindExtract:
		if rs.Input == "" || rs.Output == "" {
			return nil, errors.New("extract requires input and output")
		}
		return ExtractStep{
			Input:            rs.Input,
			Output:           rs.Output,
			Args:             rs.Args,
			ExpectedDuration: rs.ExpectedDuration,
		}, nil
	case KindSplit:
		if rs.Input == "" {
			return nil, errors.New("split requires input")
		}
		if len(rs.Segments) == 0 {
			return nil, errors.New("split requires at least one segment")
		}
		segments := make([]SplitSegment, 0, len(rs.Segments))
		for _, seg := range rs.Segments {
			segments = append(segments, SplitSegment(seg))
		}
		return SplitStep{Input: rs.Input, OutputDir: rs.OutputDir, Segments: segments}, nil
	case KindTranscode:
		if len(rs.Files) == 0 {
			return nil, errors.New("transcode requires files")
		}
		return TranscodeStep{InputDir: rs.InputDir, OutputDir: rs.OutputDir, Files: rs.Files}, nil
	case KindTag:
		if len(rs.Tags) == 0 {
			return nil, errors.New("tag requires at least one tag spec")
		}
		specs := make([]TagSpec, 0, len(rs.Tags))
		for _, tag := range rs.Tags {
			specs = append(specs, TagSpec(tag))
		}
		return TagStep{InputDir: rs.InputDir, Files: specs}, nil
	case KindCleanup:
		if len(rs.Targets) == 0 {
			return nil, errors.New("cleanup requires targets")
		}
		return CleanupStep{Targets: rs.Targets}, nil
	case "":
		return nil, errors.New("missing step type")
	default:
		return nil, fmt.Errorf("unknown step type %q", rs.Type)
	}
}
