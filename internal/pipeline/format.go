package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var lossyFormats = map[string]bool{
	"mp3": true,
	"aac": true,
}

var losslessFormats = map[string]bool{
	"flac": true,
	"alac": true,
}

// DefaultBitDepth is used for lossless formats when the operator gives no
// explicit depth.
const DefaultBitDepth = 24

// Extension returns the output file extension for the selected format,
// without the dot. AAC and ALAC streams are muxed into an MP4 container.
func (f SelectedFormat) Extension() string {
	switch f.Format {
	case "aac", "alac":
		return "m4a"
	default:
		return f.Format
	}
}

// KnownFormat reports whether name is a supported output format.
func KnownFormat(name string) bool {
	return lossyFormats[name] || losslessFormats[name]
}

// ParseFormatString parses an operator-supplied format override of the form
// "name", "name:bitrate" for lossy formats, or "name:NNbit" for lossless
// ones, for example "mp3:320k" or "flac:16bit".
func ParseFormatString(value string, formats Formats) (SelectedFormat, error) {
	name, qualifier, hasQualifier := strings.Cut(strings.TrimSpace(value), ":")
	name = strings.ToLower(name)
	if name == "" {
		return SelectedFormat{}, fmt.Errorf("empty format string")
	}
	if !KnownFormat(name) {
		return SelectedFormat{}, fmt.Errorf("unknown format %q", name)
	}

	option, ok := findOption(formats, name)
	if !ok {
		return SelectedFormat{}, fmt.Errorf("format %q is not offered by this pipeline", name)
	}

	selected := SelectedFormat{Format: name}
	switch {
	case losslessFormats[name]:
		depth := option.DefaultDepth
		if depth == 0 {
			depth = DefaultBitDepth
		}
		if hasQualifier {
			parsed, err := parseBitDepth(qualifier)
			if err != nil {
				return SelectedFormat{}, fmt.Errorf("format %q: %w", name, err)
			}
			if len(option.BitDepths) > 0 && !containsInt(option.BitDepths, parsed) {
				return SelectedFormat{}, fmt.Errorf("format %q: bit depth %d is not offered (available: %v)", name, parsed, option.BitDepths)
			}
			depth = parsed
		}
		selected.BitDepth = depth
	default:
		bitrate := option.DefaultBitrate
		if hasQualifier {
			if qualifier == "" {
				return SelectedFormat{}, fmt.Errorf("format %q: empty bitrate", name)
			}
			if len(option.Bitrates) > 0 && !containsString(option.Bitrates, qualifier) {
				return SelectedFormat{}, fmt.Errorf("format %q: bitrate %q is not offered (available: %v)", name, qualifier, option.Bitrates)
			}
			bitrate = qualifier
		}
		selected.Bitrate = bitrate
	}
	return selected, nil
}

// DefaultFormat resolves the document's declared default format, if any.
func DefaultFormat(formats Formats) (SelectedFormat, bool) {
	if formats.Default == "" {
		return SelectedFormat{}, false
	}
	selected, err := ParseFormatString(formats.Default, formats)
	if err != nil {
		return SelectedFormat{}, false
	}
	return selected, true
}

// SelectFormat prompts the operator to pick one of the document's offered
// formats by number, reading the answer from in. The document's declared
// default is the pre-picked answer; without one, an empty answer takes the
// first option.
func SelectFormat(in io.Reader, out io.Writer, formats Formats) (SelectedFormat, error) {
	if len(formats.Available) == 0 {
		return SelectedFormat{}, fmt.Errorf("pipeline offers no output formats")
	}

	defaultIndex := 0
	if formats.Default != "" {
		defaultName, _, _ := strings.Cut(formats.Default, ":")
		if option, ok := findOption(formats, strings.TrimSpace(defaultName)); ok {
			for i, candidate := range formats.Available {
				if candidate.Format == option.Format {
					defaultIndex = i
					break
				}
			}
		}
	}

	fmt.Fprintln(out, "Available output formats:")
	for i, option := range formats.Available {
		fmt.Fprintf(out, "  %d) %s%s\n", i+1, option.Format, optionDetails(option))
	}
	fmt.Fprintf(out, "Select format [1-%d] (default %d): ", len(formats.Available), defaultIndex+1)

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return SelectedFormat{}, fmt.Errorf("read format selection: %w", err)
	}
	line = strings.TrimSpace(line)

	if line == "" {
		// The declared default may carry a bitrate or depth qualifier, so it
		// resolves through the same path as an explicit override.
		if selected, ok := DefaultFormat(formats); ok {
			return selected, nil
		}
	}

	index := defaultIndex
	if line != "" {
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(formats.Available) {
			return SelectedFormat{}, fmt.Errorf("invalid selection %q", line)
		}
		index = n - 1
	}

	option := formats.Available[index]
	name := strings.ToLower(option.Format)
	if !KnownFormat(name) {
		return SelectedFormat{}, fmt.Errorf("pipeline offers unknown format %q", option.Format)
	}
	selected := SelectedFormat{Format: name}
	if losslessFormats[name] {
		selected.BitDepth = option.DefaultDepth
		if selected.BitDepth == 0 {
			selected.BitDepth = DefaultBitDepth
		}
	} else {
		selected.Bitrate = option.DefaultBitrate
	}
	return selected, nil
}

func optionDetails(option FormatOption) string {
	var parts []string
	if len(option.Bitrates) > 0 {
		parts = append(parts, "bitrates: "+strings.Join(option.Bitrates, ", "))
	}
	if option.DefaultBitrate != "" {
		parts = append(parts, "default "+option.DefaultBitrate)
	}
	if len(option.BitDepths) > 0 {
		depths := make([]string, 0, len(option.BitDepths))
		for _, d := range option.BitDepths {
			depths = append(depths, strconv.Itoa(d))
		}
		parts = append(parts, "bit depths: "+strings.Join(depths, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

func findOption(formats Formats, name string) (FormatOption, bool) {
	for _, option := range formats.Available {
		if strings.EqualFold(option.Format, name) {
			return option, true
		}
	}
	return FormatOption{}, false
}

func parseBitDepth(qualifier string) (int, error) {
	digits, ok := strings.CutSuffix(qualifier, "bit")
	if !ok {
		return 0, fmt.Errorf("invalid bit depth %q (expected like 16bit or 24bit)", qualifier)
	}
	depth, err := strconv.Atoi(digits)
	if err != nil || depth <= 0 {
		return 0, fmt.Errorf("invalid bit depth %q", qualifier)
	}
	return depth, nil
}

func containsInt(values []int, want int) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
