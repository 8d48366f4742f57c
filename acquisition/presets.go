package acquisition

import "github.com/sirupsen/logrus"

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// DefaultOptions are the three download styles tried in order: best audio
// transcoded to mp3 with a browser identity, native m4a without transcoding,
// and finally the smallest stream available.
func DefaultOptions() []YtDlpOptions {
	return []YtDlpOptions{
		{
			Name:         "bestaudio-mp3",
			Format:       "bestaudio/best",
			ExtractAudio: true,
			AudioFormat:  "mp3",
			AudioQuality: "192K",
			Headers: map[string]string{
				"User-Agent": desktopUserAgent,
				"Accept":     "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			},
			NoCheckCertificate: true,
			GeoBypass:          true,
		},
		{
			Name:   "bestaudio-m4a",
			Format: "bestaudio[ext=m4a]/bestaudio/best",
		},
		{
			Name:         "worstaudio",
			Format:       "worstaudio/worst",
			ExtractAudio: true,
			AudioFormat:  "mp3",
		},
	}
}

// DefaultStrategies builds yt-dlp strategies for DefaultOptions.
func DefaultStrategies(binary, tempDir string, logger *logrus.Logger) []Strategy {
	options := DefaultOptions()
	strategies := make([]Strategy, 0, len(options))
	for _, opts := range options {
		strategies = append(strategies, NewYtDlpStrategy(tempDir, opts,
			WithBinary(binary),
			WithStrategyLogger(logger),
		))
	}
	return strategies
}
