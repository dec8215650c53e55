package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

type Fields = logrus.Fields

// Logger provides leveled logging (info/warning/error) to files and stdout.
type Logger struct {
	log    *logrus.Logger
	logDir string
	files  map[string]*lumberjack.Logger
	mu     sync.Mutex
}

// NewLogger creates a Logger writing to stdout and per-level files in logDir.
func NewLogger(logDir, level string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return newLogger(os.Stdout, logDir, level), nil
}

// NewDiscard returns a Logger that writes only to its level files in logDir.
func NewDiscard(logDir string) *Logger {
	return newLogger(io.Discard, logDir, "debug")
}

func newLogger(console io.Writer, logDir, level string) *Logger {
	l := &Logger{
		log:    logrus.New(),
		logDir: logDir,
		files:  make(map[string]*lumberjack.Logger),
	}

	l.log.SetOutput(console)
	l.log.SetLevel(parseLevel(level))
	l.log.SetFormatter(&formatter.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		HideKeys:        false,
		NoColors:        console == io.Discard,
	})

	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		l.files[name] = &lumberjack.Logger{
			Filename:   filepath.Join(logDir, name),
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     14,
			LocalTime:  true,
		}
	}

	fileFormatter := &formatter.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		NoColors:        true,
	}
	l.log.AddHook(&levelHook{
		formatter: fileFormatter,
		writers: map[logrus.Level]io.Writer{
			logrus.InfoLevel:  l.files[InfoFile],
			logrus.DebugLevel: l.files[InfoFile],
			logrus.WarnLevel:  l.files[WarningFile],
			logrus.ErrorLevel: l.files[ErrorFile],
			logrus.FatalLevel: l.files[ErrorFile],
			logrus.PanicLevel: l.files[ErrorFile],
		},
	})

	return l
}

func parseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// WithFields returns a structured entry.
func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

// Dir returns the directory holding the level files.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.files[fileName]; !ok {
		return fmt.Errorf("unknown log file: %s", fileName)
	}

	filePath := filepath.Join(l.logDir, fileName)
	if err := os.Truncate(filePath, 0); err != nil && !os.IsNotExist(err) {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}

	l.Info("Log file %s has been cleared.", fileName)
	return nil
}

// Close flushes and closes the level files.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// levelHook routes entries to the file of their level.
type levelHook struct {
	formatter logrus.Formatter
	writers   map[logrus.Level]io.Writer
	mu        sync.Mutex
}

func (h *levelHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelHook) Fire(entry *logrus.Entry) error {
	w, ok := h.writers[entry.Level]
	if !ok {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = w.Write(line)
	return err
}
