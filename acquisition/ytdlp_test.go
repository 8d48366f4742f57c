package acquisition

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outputDir extracts the scratch directory from the -o template.
func outputDir(t *testing.T, args []string) string {
	t.Helper()
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return filepath.Dir(args[i+1])
		}
	}
	t.Fatalf("expected -o in args %v", args)
	return ""
}

func TestYtDlpBuildArgs(t *testing.T) {
	s := NewYtDlpStrategy("/scratch", DefaultOptions()[0])
	args := s.buildArgs("/scratch/run", "https://youtu.be/abc")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-f bestaudio/best")
	assert.Contains(t, joined, "-x --audio-format mp3 --audio-quality 192K")
	assert.Contains(t, joined, "--add-header Accept:")
	assert.Contains(t, joined, "--add-header User-Agent:Mozilla/5.0")
	assert.Contains(t, joined, "--no-check-certificates")
	assert.Contains(t, joined, "--geo-bypass")
	assert.Equal(t, []string{"--", "https://youtu.be/abc"}, args[len(args)-2:])

	plain := NewYtDlpStrategy("/scratch", DefaultOptions()[1]).buildArgs("/scratch/run", "u")
	assert.NotContains(t, plain, "-x")
	assert.NotContains(t, plain, "--geo-bypass")
}

func TestYtDlpFetch(t *testing.T) {
	root := t.TempDir()
	var gotBinary string

	run := func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotBinary = name
		dir := outputDir(t, args)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.webm.part"), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.mp3"), []byte("audio"), 0o644))
		return []byte(`{"id":"abc","title":"Gopher Talk","duration":125.6}` + "\n"), nil, nil
	}

	s := NewYtDlpStrategy(root, DefaultOptions()[0], WithBinary("/opt/yt-dlp"), WithRunner(run), WithStrategyLogger(quietLogger()))
	asset, err := s.Fetch(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)

	assert.Equal(t, "/opt/yt-dlp", gotBinary)
	assert.Equal(t, "abc.mp3", filepath.Base(asset.Path))
	assert.Equal(t, root, filepath.Dir(asset.Dir()))
	assert.Equal(t, "Gopher Talk", asset.Title)
	assert.Equal(t, 126, asset.DurationSeconds)
	assert.Equal(t, "bestaudio-mp3", asset.Strategy)
}

func TestYtDlpFetchWithoutMetadata(t *testing.T) {
	root := t.TempDir()
	run := func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		require.NoError(t, os.WriteFile(filepath.Join(outputDir(t, args), "abc.m4a"), []byte("audio"), 0o644))
		return []byte("not json\n"), nil, nil
	}

	asset, err := NewYtDlpStrategy(root, DefaultOptions()[1], WithRunner(run)).Fetch(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", asset.Title)
	assert.Equal(t, 0, asset.DurationSeconds)
}

func TestYtDlpFetchFailureRemovesScratchDir(t *testing.T) {
	tests := []struct {
		name    string
		run     CommandRunner
		wantErr error
	}{
		{
			name: "process error",
			run: func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
				require.NoError(t, os.WriteFile(filepath.Join(outputDir(t, args), "abc.mp3.part"), []byte("x"), 0o644))
				return nil, []byte("ERROR: Sign in to confirm you're not a bot"), errors.New("exit status 1")
			},
		},
		{
			name: "no audio produced",
			run: func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
				return nil, nil, nil
			},
			wantErr: ErrEmptyOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			s := NewYtDlpStrategy(root, DefaultOptions()[2], WithRunner(tt.run), WithStrategyLogger(quietLogger()))

			_, err := s.Fetch(context.Background(), "u")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestYtDlpFetchReportsStderr(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, []byte("ERROR: Video unavailable"), errors.New("exit status 1")
	}
	_, err := NewYtDlpStrategy(t.TempDir(), DefaultOptions()[0], WithRunner(run)).Fetch(context.Background(), "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Video unavailable")
}

func TestDefaultStrategiesOrder(t *testing.T) {
	strategies := DefaultStrategies("yt-dlp", t.TempDir(), quietLogger())
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"bestaudio-mp3", "bestaudio-m4a", "worstaudio"}, names)
}

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"a.mp3":  "audio/mpeg",
		"a.M4A":  "audio/mp4",
		"a.webm": "audio/webm",
		"a.wav":  "audio/wav",
		"a.bin":  "audio/mpeg",
	}
	for path, want := range tests {
		assert.Equal(t, want, MimeType(path), path)
	}
}

func TestFindAudioFilePrefersTarget(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.webm", "a.mp3", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	path, err := findAudioFile(dir, "mp3")
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", filepath.Base(path))

	path, err = findAudioFile(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", filepath.Base(path))
}
