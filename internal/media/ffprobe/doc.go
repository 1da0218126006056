// Package ffprobe wraps the ffprobe binary for media inspection.
package ffprobe
