package acquisition

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nijaru/clipzaar/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultYtDlpPath = "yt-dlp"
	unknownTitle     = "Unknown"
	stderrLimit      = 512
)

// YtDlpOptions configures one yt-dlp invocation style.
type YtDlpOptions struct {
	Name               string
	Format             string
	ExtractAudio       bool
	AudioFormat        string
	AudioQuality       string
	Headers            map[string]string
	NoCheckCertificate bool
	GeoBypass          bool
	ExtraArgs          []string
}

// CommandRunner executes a binary and returns its stdout and stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// YtDlpStrategy downloads audio with the yt-dlp binary into a fresh
// <tempDir>/<uuid> directory per call.
type YtDlpStrategy struct {
	opts    YtDlpOptions
	binary  string
	tempDir string
	run     CommandRunner
	logger  *logrus.Logger
}

type YtDlpOption func(*YtDlpStrategy)

func WithBinary(path string) YtDlpOption {
	return func(s *YtDlpStrategy) {
		if path != "" {
			s.binary = path
		}
	}
}

func WithRunner(run CommandRunner) YtDlpOption {
	return func(s *YtDlpStrategy) {
		if run != nil {
			s.run = run
		}
	}
}

func WithStrategyLogger(logger *logrus.Logger) YtDlpOption {
	return func(s *YtDlpStrategy) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewYtDlpStrategy(tempDir string, opts YtDlpOptions, options ...YtDlpOption) *YtDlpStrategy {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	s := &YtDlpStrategy{
		opts:    opts,
		binary:  defaultYtDlpPath,
		tempDir: tempDir,
		run:     execRunner,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *YtDlpStrategy) Name() string {
	if s.opts.Name != "" {
		return s.opts.Name
	}
	return "yt-dlp " + s.opts.Format
}

func (s *YtDlpStrategy) Fetch(ctx context.Context, url string) (asset models.AudioAsset, err error) {
	dir := filepath.Join(s.tempDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.AudioAsset{}, errors.Wrap(err, "create scratch dir")
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				s.logger.WithError(rmErr).WithField("dir", dir).Warn("Failed to remove scratch dir")
			}
		}
	}()

	stdout, stderr, runErr := s.run(ctx, s.binary, s.buildArgs(dir, url)...)
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.AudioAsset{}, errors.Wrap(ctxErr, "yt-dlp interrupted")
		}
		return models.AudioAsset{}, errors.Errorf("yt-dlp failed: %v: %s", runErr, truncateStderr(stderr))
	}

	path, err := findAudioFile(dir, s.preferredExt())
	if err != nil {
		return models.AudioAsset{}, err
	}

	title, duration := parseVideoInfo(stdout)
	return models.AudioAsset{
		Path:            path,
		Title:           title,
		DurationSeconds: duration,
		Strategy:        s.Name(),
	}, nil
}

func (s *YtDlpStrategy) buildArgs(dir, url string) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"--dump-json",
		"--no-simulate",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
	}

	if s.opts.Format != "" {
		args = append(args, "-f", s.opts.Format)
	}

	if s.opts.ExtractAudio {
		args = append(args, "-x")
		if s.opts.AudioFormat != "" {
			args = append(args, "--audio-format", s.opts.AudioFormat)
		}
		if s.opts.AudioQuality != "" {
			args = append(args, "--audio-quality", s.opts.AudioQuality)
		}
	}

	keys := make([]string, 0, len(s.opts.Headers))
	for key := range s.opts.Headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--add-header", key+":"+s.opts.Headers[key])
	}

	if s.opts.NoCheckCertificate {
		args = append(args, "--no-check-certificates")
	}
	if s.opts.GeoBypass {
		args = append(args, "--geo-bypass")
	}

	args = append(args, s.opts.ExtraArgs...)
	return append(args, "--", url)
}

func (s *YtDlpStrategy) preferredExt() string {
	if s.opts.ExtractAudio {
		return s.opts.AudioFormat
	}
	return ""
}

type videoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// parseVideoInfo reads the first JSON object yt-dlp printed. Missing or
// unparsable metadata yields "Unknown" and a zero duration.
func parseVideoInfo(stdout []byte) (string, int) {
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info videoInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			continue
		}
		title := strings.TrimSpace(info.Title)
		if title == "" {
			title = unknownTitle
		}
		duration := 0
		if info.Duration > 0 {
			duration = int(math.Round(info.Duration))
		}
		return title, duration
	}
	return unknownTitle, 0
}

func truncateStderr(stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	if len(msg) > stderrLimit {
		msg = msg[:stderrLimit] + "..."
	}
	return msg
}
