package transcription

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/nijaru/clipzaar/acquisition"
	"github.com/nijaru/clipzaar/models"
	"github.com/sirupsen/logrus"
)

const (
	ReasonInvalidInput = "invalid_input"
	ReasonBackendError = "backend_error"
)

// Backend turns audio bytes into text. Backends that know segment timing
// return it in Result.Segments; plain-text backends leave it empty.
type Backend interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (Result, error)
}

type Result struct {
	Text     string
	Segments []models.Segment
}

type Error struct {
	Reason string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "transcription " + e.Reason
	}
	return fmt.Sprintf("transcription %s: %s", e.Reason, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type TranscriptionService struct {
	backend Backend
	timeout time.Duration
	logger  *logrus.Logger
}

type Option func(*TranscriptionService)

func WithTimeout(d time.Duration) Option {
	return func(s *TranscriptionService) {
		s.timeout = d
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(s *TranscriptionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewTranscriptionService(backend Backend, opts ...Option) *TranscriptionService {
	s := &TranscriptionService{
		backend: backend,
		timeout: 10 * time.Minute,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TranscriptionService) Transcribe(ctx context.Context, asset models.AudioAsset) (models.Transcript, error) {
	audio, err := readAudio(asset.Path)
	if err != nil {
		s.logger.WithError(err).WithField("path", asset.Path).Error("Audio file unusable for transcription")
		return models.Transcript{}, err
	}

	mimeType := acquisition.MimeType(asset.Path)
	s.logger.WithFields(logrus.Fields{
		"path":     asset.Path,
		"bytes":    len(audio),
		"mimeType": mimeType,
	}).Info("Starting transcription")

	result, err := s.callBackend(ctx, audio, mimeType)
	if err != nil {
		s.logger.WithError(err).WithField("path", asset.Path).Error("Transcription backend failed")
		return models.Transcript{}, &Error{Reason: ReasonBackendError, Detail: err.Error(), Err: err}
	}

	transcript := normalize(result)
	if transcript.Text == "" {
		s.logger.WithField("path", asset.Path).Error("Transcription resulted in empty text")
		return models.Transcript{}, &Error{Reason: ReasonBackendError, Detail: "empty transcript"}
	}

	s.logger.WithFields(logrus.Fields{
		"path":     asset.Path,
		"chars":    len(transcript.Text),
		"segments": len(transcript.Segments),
	}).Info("Transcription completed successfully")
	return transcript, nil
}

func readAudio(path string) ([]byte, error) {
	if path == "" {
		return nil, &Error{Reason: ReasonInvalidInput, Detail: "no audio path"}
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, &Error{Reason: ReasonInvalidInput, Detail: "audio file not found", Err: err}
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return nil, &Error{Reason: ReasonInvalidInput, Detail: "audio file is empty"}
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Reason: ReasonInvalidInput, Detail: "audio file unreadable", Err: err}
	}
	return audio, nil
}

func (s *TranscriptionService) callBackend(ctx context.Context, audio []byte, mimeType string) (result Result, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panicked: %v", r)
		}
	}()

	result, err = s.backend.Transcribe(ctx, audio, mimeType)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return result, err
}

func normalize(result Result) models.Transcript {
	segments := make([]models.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		seg.Text = strings.TrimSpace(seg.Text)
		if seg.Text == "" {
			continue
		}
		if seg.Start < 0 {
			seg.Start = 0
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		segments = append(segments, seg)
	}
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	text := strings.TrimSpace(result.Text)
	if text == "" && len(segments) > 0 {
		parts := make([]string, len(segments))
		for i, seg := range segments {
			parts[i] = seg.Text
		}
		text = strings.Join(parts, " ")
	}

	if len(segments) == 0 {
		segments = nil
	}
	return models.Transcript{Text: text, Segments: segments}
}

// FormatSegments renders one "[start - end]: text" line per segment.
func FormatSegments(segments []models.Segment) string {
	var builder strings.Builder
	for i, seg := range segments {
		if i > 0 {
			builder.WriteByte('\n')
		}
		fmt.Fprintf(&builder, "[%.1fs - %.1fs]: %s", seg.Start, seg.End, seg.Text)
	}
	return builder.String()
}
