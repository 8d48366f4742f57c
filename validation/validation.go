package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/nijaru/clipzaar/models"
)

const (
	MessageRequired = "URL is required"
	MessageInvalid  = "Invalid YouTube URL. Please provide a valid YouTube URL."
)

// ErrNotFound is returned when no video ID can be extracted from a URL.
var ErrNotFound = errors.New("video id not found")

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var watchHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
}

const shortHost = "youtu.be"

type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a quick URL check, shaped for the client.
type Result struct {
	Valid   bool   `json:"valid"`
	VideoID string `json:"video_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResolveVideoID extracts the video ID from a watch, embed or short link.
// It never touches the network.
func ResolveVideoID(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", &ValidationError{Message: MessageRequired, Err: ErrNotFound}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", &ValidationError{Message: MessageInvalid, Err: ErrNotFound}
	}

	host := strings.ToLower(parsedURL.Hostname())

	var id string
	switch {
	case watchHosts[host]:
		id = idFromWatchHost(parsedURL)
	case host == shortHost:
		id = idFromShortLink(parsedURL)
	}

	if !videoIDPattern.MatchString(id) {
		return "", &ValidationError{Message: MessageInvalid, Err: ErrNotFound}
	}
	return id, nil
}

func idFromWatchHost(u *url.URL) string {
	path := strings.TrimSuffix(u.Path, "/")
	switch {
	case path == "/watch":
		return u.Query().Get("v")
	case strings.HasPrefix(path, "/embed/"):
		parts := strings.Split(strings.TrimPrefix(path, "/embed/"), "/")
		if len(parts) != 1 {
			return ""
		}
		return parts[0]
	}
	return ""
}

func idFromShortLink(u *url.URL) string {
	id := strings.TrimPrefix(u.Path, "/")
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

// Resolve wraps ResolveVideoID into a VideoReference.
func Resolve(rawURL string) (models.VideoReference, error) {
	id, err := ResolveVideoID(rawURL)
	if err != nil {
		return models.VideoReference{}, err
	}
	return models.VideoReference{RawURL: strings.TrimSpace(rawURL), ID: id}, nil
}

// ValidateURL is the cheap check clients run before committing to a full
// pipeline run.
func ValidateURL(rawURL string) Result {
	id, err := ResolveVideoID(rawURL)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return Result{Valid: false, Error: validationErr.Message}
		}
		return Result{Valid: false, Error: MessageInvalid}
	}
	return Result{Valid: true, VideoID: id}
}

// IsNotFound reports whether err came from a failed resolution.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
