package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"

	"tracksplit/internal/logging"
	"tracksplit/internal/pipeline"
)

type tagStep struct {
	step pipeline.TagStep
}

func (s *tagStep) Name() string { return "tag" }

func (s *tagStep) Execute(ctx context.Context, env *Env) error {
	inputDir := env.Resolve(s.step.InputDir)
	if s.step.InputDir == "" {
		inputDir = env.WorkingDir
	}

	for _, spec := range s.step.Files {
		matches, err := expandPattern(inputDir, spec.File)
		if err != nil {
			return Wrap(ErrConfiguration, s.Name(), "glob", spec.File, err)
		}
		if len(matches) == 0 {
			env.Logger.Warn("no files match tag pattern, skipping", logging.String("pattern", spec.File))
			continue
		}
		for _, path := range matches {
			if !strings.EqualFold(filepath.Ext(path), ".mp3") {
				env.Logger.Warn("tagging supports only mp3 files, skipping",
					logging.String("file", filepath.Base(path)))
				continue
			}
			if err := writeTags(env, path, spec); err != nil {
				// A failed tag write leaves the audio intact; warn and keep
				// tagging the rest.
				env.Logger.Warn("tag write failed",
					logging.String("file", filepath.Base(path)),
					logging.Error(err))
			}
		}
	}
	return nil
}

func writeTags(env *Env, path string, spec pipeline.TagSpec) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open tags: %w", err)
	}
	defer tag.Close()

	if spec.Title != "" {
		tag.SetTitle(spec.Title)
	}
	if spec.Artist != "" {
		tag.SetArtist(spec.Artist)
	}
	if spec.Album != "" {
		tag.SetAlbum(spec.Album)
	}
	if spec.AlbumArtist != "" {
		tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, spec.AlbumArtist)
	}
	if spec.Genre != "" {
		tag.SetGenre(spec.Genre)
	}
	if spec.Track > 0 {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, trackNumber(spec.Track, spec.TrackTotal))
	}
	if spec.Disk > 0 {
		tag.AddTextFrame("TPOS", id3v2.EncodingUTF8, trackNumber(spec.Disk, spec.DiskTotal))
	}
	if spec.Year > 0 {
		tag.AddTextFrame("TYER", id3v2.EncodingUTF8, fmt.Sprintf("%d", spec.Year))
	}
	if spec.Comment != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     spec.Comment,
		})
	}

	if spec.AlbumArt != "" {
		if err := attachArt(env, tag, spec.AlbumArt); err != nil {
			env.Logger.Warn("album art skipped",
				logging.String("art", spec.AlbumArt),
				logging.Error(err))
		}
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tags: %w", err)
	}
	env.Logger.Info("tags written", logging.String("file", filepath.Base(path)))
	return nil
}

func attachArt(env *Env, tag *id3v2.Tag, artPath string) error {
	resolved := env.Resolve(artPath)
	artwork, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("read album art: %w", err)
	}

	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    artMimeType(env, artPath),
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
	return nil
}

// artMimeType infers the picture MIME type from the art file's extension,
// defaulting to JPEG with a warning for anything unrecognized.
func artMimeType(env *Env, path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	default:
		env.Logger.Warn("unrecognized album art extension, assuming jpeg",
			logging.String("art", filepath.Base(path)))
		return "image/jpeg"
	}
}

// trackNumber renders "n" or "n/total" for TRCK and TPOS frames.
func trackNumber(n, total int) string {
	if total > 0 {
		return fmt.Sprintf("%d/%d", n, total)
	}
	return fmt.Sprintf("%d", n)
}
