package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field keys shared by every resize log line.
const (
	FieldSource    = "source"
	FieldOutput    = "output"
	FieldSequence  = "sequence"
	FieldOperation = "operation"
)

// Config selects the level and destinations of the resize log.
type Config struct {
	Level    string
	FilePath string // empty disables the rotated file
	Rotation Rotation

	// Console receives a copy of every line. When both Console and
	// FilePath are empty, lines go to stderr.
	Console io.Writer
}

// Rotation holds the lumberjack limits for the log file.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds a JSON logger writing to the rotated file and the console.
func New(cfg Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out, err := outputFor(cfg)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(jsonFormatter())
	log.SetOutput(out)
	return log, nil
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	}
}

func outputFor(cfg Config) (io.Writer, error) {
	if cfg.FilePath == "" {
		if cfg.Console == nil {
			// stdout carries the batch summary
			return os.Stderr, nil
		}
		return cfg.Console, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}
	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.Rotation.MaxSizeMB,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAgeDays,
		Compress:   cfg.Rotation.Compress,
	}
	if cfg.Console == nil {
		return file, nil
	}
	return io.MultiWriter(file, cfg.Console), nil
}

// WithSource tags an entry with the source photo.
func WithSource(log *logrus.Logger, path string) *logrus.Entry {
	return log.WithField(FieldSource, path)
}

// WithSequence tags an entry with the source photo and its output number.
func WithSequence(log *logrus.Logger, path string, sequence int) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		FieldSource:   path,
		FieldSequence: sequence,
	})
}

// WithOutput tags an entry with a source photo and the JPEG written for it.
func WithOutput(log *logrus.Logger, source, output string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		FieldSource: source,
		FieldOutput: output,
	})
}

// WithOperation tags an entry with a batch step.
func WithOperation(log *logrus.Logger, operation string) *logrus.Entry {
	return log.WithField(FieldOperation, operation)
}

// WithFailure tags an entry with the source photo and the step that failed.
func WithFailure(log *logrus.Logger, path, operation string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		FieldSource:    path,
		FieldOperation: operation,
	})
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
