package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Dir   string
	Level string
	JSON  bool
}

// New returns a logger writing to stdout and, when Dir is set, to a rotating
// app.log inside it.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", opts.Level)
		}
		level = parsed
	}
	logger.SetLevel(level)

	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if opts.Dir == "" {
		logger.SetOutput(os.Stdout)
		return logger, nil
	}

	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return nil, errors.Wrap(err, "create log dir")
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "app.log"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, logFile))
	return logger, nil
}
