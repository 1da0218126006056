// Package timecode parses and formats the timestamp grammars used in
// pipeline documents: strict segment timecodes (h:mm:ss.fff or
// h:mm:ss.ffffff) and lenient h:mm:ss clock durations.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse converts a strict segment timecode to seconds. The accepted grammar
// is h:mm:ss.fff or h:mm:ss.ffffff: hours unpadded, minutes and seconds
// exactly two digits and below 60, and a fractional part of exactly three or
// six digits.
func Parse(value string) (float64, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timecode %q: expected h:mm:ss.fff or h:mm:ss.ffffff", value)
	}

	hours, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("timecode %q: invalid hours", value)
	}

	minutes, err := parseTwoDigit(parts[1])
	if err != nil {
		return 0, fmt.Errorf("timecode %q: invalid minutes: %w", value, err)
	}

	secParts := strings.Split(parts[2], ".")
	if len(secParts) != 2 {
		return 0, fmt.Errorf("timecode %q: missing fractional seconds", value)
	}
	seconds, err := parseTwoDigit(secParts[0])
	if err != nil {
		return 0, fmt.Errorf("timecode %q: invalid seconds: %w", value, err)
	}

	frac := secParts[1]
	if len(frac) != 3 && len(frac) != 6 {
		return 0, fmt.Errorf("timecode %q: fractional part must be 3 or 6 digits", value)
	}
	fracValue, err := strconv.ParseUint(frac, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("timecode %q: invalid fractional seconds", value)
	}

	total := float64(hours)*3600 + float64(minutes)*60 + float64(seconds)
	total += float64(fracValue) / math.Pow10(len(frac))
	return total, nil
}

// Valid reports whether value satisfies the strict segment grammar.
func Valid(value string) bool {
	_, err := Parse(value)
	return err == nil
}

// Format renders seconds as the canonical h:mm:ss form with the given number
// of fractional digits (3 or 6). It is the inverse of Parse for valid inputs.
func Format(seconds float64, fracDigits int) string {
	if fracDigits != 3 && fracDigits != 6 {
		fracDigits = 3
	}
	if seconds < 0 {
		seconds = 0
	}
	scale := int64(math.Pow10(fracDigits))
	units := int64(math.Round(seconds * float64(scale)))

	frac := units % scale
	whole := units / scale
	s := whole % 60
	whole /= 60
	m := whole % 60
	h := whole / 60

	return fmt.Sprintf("%d:%02d:%02d.%0*d", h, m, s, fracDigits, frac)
}

// ParseClock converts an h:mm:ss duration string to seconds. Each field is
// numeric (the seconds field may carry a fraction); minutes and seconds must
// be below 60. This is the grammar used for declared expected durations.
func ParseClock(value string) (float64, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("duration %q: expected h:mm:ss", value)
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("duration %q: invalid hours", value)
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("duration %q: invalid minutes", value)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("duration %q: invalid seconds", value)
	}

	if minutes >= 60 {
		return 0, fmt.Errorf("duration %q: minutes must be below 60", value)
	}
	if seconds >= 60 {
		return 0, fmt.Errorf("duration %q: seconds must be below 60", value)
	}

	return hours*3600 + minutes*60 + seconds, nil
}

func parseTwoDigit(field string) (uint64, error) {
	if len(field) != 2 {
		return 0, fmt.Errorf("field %q must be two digits", field)
	}
	value, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("field %q is not numeric", field)
	}
	if value >= 60 {
		return 0, fmt.Errorf("field %q must be below 60", field)
	}
	return value, nil
}
