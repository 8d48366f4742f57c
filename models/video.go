package models

import (
	"fmt"
	"path/filepath"
)

// VideoReference is a platform URL together with the video ID resolved from it.
type VideoReference struct {
	RawURL string `json:"url"`
	ID     string `json:"video_id"`
}

// AudioAsset is a downloaded audio file. The file lives alone in its own
// scratch directory, so removing Dir() removes everything the download produced.
type AudioAsset struct {
	Path            string `json:"path"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
	Strategy        string `json:"strategy,omitempty"`
}

// Dir returns the scratch directory holding the audio file.
func (a AudioAsset) Dir() string {
	if a.Path == "" {
		return ""
	}
	return filepath.Dir(a.Path)
}

// Segment is a time-bounded piece of a transcript, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

func (t Transcript) HasSegments() bool {
	return len(t.Segments) > 0
}

type GeneratedContent struct {
	SocialThread    string `json:"twitter_thread"`
	ClipSuggestions string `json:"reel_suggestions"`
}

// Request is one pipeline invocation. ContactEmail is never interpreted, only
// echoed back on the result.
type Request struct {
	URL          string `json:"url"`
	ContactEmail string `json:"email"`
}

// Result is the successful outcome of a pipeline run.
type Result struct {
	VideoID         string           `json:"video_id"`
	URL             string           `json:"url"`
	Title           string           `json:"video_title"`
	DurationSeconds int              `json:"duration_seconds"`
	Content         GeneratedContent `json:"content"`
	ContactEmail    string           `json:"email"`
	Degraded        []string         `json:"degraded,omitempty"`
	CacheHit        bool             `json:"cache_hit"`
}

// FormattedDuration renders the duration as m:ss, or "Unknown" when the
// platform did not report one.
func (r Result) FormattedDuration() string {
	return FormatDuration(r.DurationSeconds)
}

func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
