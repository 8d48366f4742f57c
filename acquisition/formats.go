package acquisition

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const defaultMimeType = "audio/mpeg"

// Audio containers a download may legitimately end up in, with the MIME hint
// handed to transcription backends.
var recognizedFormats = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".flac": "audio/flac",
}

func IsRecognizedFormat(path string) bool {
	_, ok := recognizedFormats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// MimeType returns the MIME hint for an audio file, falling back to audio/mpeg.
func MimeType(path string) string {
	if mime, ok := recognizedFormats[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return defaultMimeType
}

// findAudioFile picks the downloaded audio file out of a scratch directory,
// preferring the requested extension over any other recognized one.
func findAudioFile(dir, preferredExt string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "read scratch dir %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if preferredExt != "" {
		preferredExt = "." + strings.TrimPrefix(strings.ToLower(preferredExt), ".")
		for _, name := range names {
			if strings.ToLower(filepath.Ext(name)) == preferredExt {
				return filepath.Join(dir, name), nil
			}
		}
	}

	for _, name := range names {
		if IsRecognizedFormat(name) {
			return filepath.Join(dir, name), nil
		}
	}

	return "", ErrEmptyOutput
}

// verifyAudioFile enforces the success criteria for an attempt: a non-empty
// regular file in a recognized audio container.
func verifyAudioFile(path string) error {
	if path == "" {
		return ErrEmptyOutput
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrEmptyOutput, "%s does not exist", path)
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return errors.Wrapf(ErrEmptyOutput, "%s is not a regular file", path)
	}
	if info.Size() == 0 {
		return errors.Wrapf(ErrEmptyOutput, "%s is empty", path)
	}
	if !IsRecognizedFormat(path) {
		return errors.Wrapf(ErrUnrecognizedFormat, "%s", filepath.Base(path))
	}
	return nil
}
