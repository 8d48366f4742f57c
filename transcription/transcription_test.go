package transcription

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nijaru/clipzaar/models"
	"github.com/sirupsen/logrus"
)

type backendFunc func(ctx context.Context, audio []byte, mimeType string) (Result, error)

func (f backendFunc) Transcribe(ctx context.Context, audio []byte, mimeType string) (Result, error) {
	return f(ctx, audio, mimeType)
}

func newTestService(backend Backend, opts ...Option) *TranscriptionService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewTranscriptionService(backend, append([]Option{WithLogger(logger)}, opts...)...)
}

func writeAudio(t *testing.T, name string, content []byte) models.AudioAsset {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write audio: %v", err)
	}
	return models.AudioAsset{Path: path}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	return terr.Reason
}

func TestTranscribePlainText(t *testing.T) {
	var gotMime string
	var gotAudio []byte
	service := newTestService(backendFunc(func(ctx context.Context, audio []byte, mimeType string) (Result, error) {
		gotMime, gotAudio = mimeType, audio
		return Result{Text: "  hello world \n"}, nil
	}))

	transcript, err := service.Transcribe(context.Background(), writeAudio(t, "a.m4a", []byte("audio")))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if transcript.Text != "hello world" {
		t.Errorf("expected 'hello world', got '%s'", transcript.Text)
	}
	if transcript.HasSegments() {
		t.Errorf("expected no segments, got %v", transcript.Segments)
	}
	if gotMime != "audio/mp4" {
		t.Errorf("expected mime audio/mp4, got %s", gotMime)
	}
	if string(gotAudio) != "audio" {
		t.Errorf("expected audio bytes to be passed through, got %q", gotAudio)
	}
}

func TestTranscribeNormalizesSegments(t *testing.T) {
	service := newTestService(backendFunc(func(ctx context.Context, audio []byte, mimeType string) (Result, error) {
		return Result{Segments: []models.Segment{
			{Start: 5, End: 4, Text: " second "},
			{Start: -1, End: 2, Text: "first"},
			{Start: 3, End: 3.5, Text: "   "},
		}}, nil
	}))

	transcript, err := service.Transcribe(context.Background(), writeAudio(t, "a.mp3", []byte("audio")))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []models.Segment{
		{Start: 0, End: 2, Text: "first"},
		{Start: 5, End: 5, Text: "second"},
	}
	if len(transcript.Segments) != len(expected) {
		t.Fatalf("expected %d segments, got %d", len(expected), len(transcript.Segments))
	}
	for i, seg := range expected {
		if transcript.Segments[i] != seg {
			t.Errorf("segment %d: expected %+v, got %+v", i, seg, transcript.Segments[i])
		}
	}
	if transcript.Text != "first second" {
		t.Errorf("expected text joined from segments, got '%s'", transcript.Text)
	}
}

func TestTranscribeInvalidInput(t *testing.T) {
	called := false
	service := newTestService(backendFunc(func(ctx context.Context, audio []byte, mimeType string) (Result, error) {
		called = true
		return Result{Text: "x"}, nil
	}))

	tests := []struct {
		name  string
		asset models.AudioAsset
	}{
		{"missing path", models.AudioAsset{}},
		{"missing file", models.AudioAsset{Path: filepath.Join(t.TempDir(), "gone.mp3")}},
		{"empty file", writeAudio(t, "empty.mp3", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Transcribe(context.Background(), tt.asset)
			if reason := reasonOf(t, err); reason != ReasonInvalidInput {
				t.Errorf("expected %s, got %s", ReasonInvalidInput, reason)
			}
		})
	}
	if called {
		t.Errorf("expected backend not to be called")
	}
}

func TestTranscribeBackendFaults(t *testing.T) {
	tests := []struct {
		name    string
		backend backendFunc
	}{
		{"error", func(ctx context.Context, audio []byte, mimeType string) (Result, error) {
			return Result{}, errors.New("quota exceeded")
		}},
		{"panic", func(ctx context.Context, audio []byte, mimeType string) (Result, error) {
			panic("nil pointer")
		}},
		{"empty text", func(ctx context.Context, audio []byte, mimeType string) (Result, error) {
			return Result{Text: "   "}, nil
		}},
		{"timeout", func(ctx context.Context, audio []byte, mimeType string) (Result, error) {
			<-ctx.Done()
			return Result{}, ctx.Err()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(tt.backend, WithTimeout(20*time.Millisecond))
			_, err := service.Transcribe(context.Background(), writeAudio(t, "a.mp3", []byte("audio")))
			if reason := reasonOf(t, err); reason != ReasonBackendError {
				t.Errorf("expected %s, got %s", ReasonBackendError, reason)
			}
		})
	}
}

func TestFormatSegments(t *testing.T) {
	output := FormatSegments([]models.Segment{
		{Start: 12, End: 15.5, Text: "Welcome back"},
		{Start: 15.5, End: 20.04, Text: "Today we talk Go"},
	})
	expected := "[12.0s - 15.5s]: Welcome back\n[15.5s - 20.0s]: Today we talk Go"
	if output != expected {
		t.Errorf("expected '%s', got '%s'", expected, output)
	}
}
