package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields type alias for logrus.Fields
type Fields = logrus.Fields

var globalLogger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return l
}

// Configure sets level and output from the application config. When file is
// non-empty the log is duplicated to a size-rotated file next to stdout,
// keeping a week of history.
func Configure(level string, file string) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	globalLogger.SetLevel(lvl)

	if file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // MB
			MaxAge:     7,  // days
			MaxBackups: 7,
			Compress:   true,
		}
		globalLogger.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}
	return nil
}

// WithComponent returns an entry tagged with the pipeline stage that emits it,
// so a failed refresh can be traced to the upstream call that caused it.
func WithComponent(component string) *logrus.Entry {
	return globalLogger.WithField("component", component)
}

// WithFields returns an entry with the given fields.
func WithFields(fields Fields) *logrus.Entry {
	return globalLogger.WithFields(fields)
}

// WithError returns an entry with the error attached.
func WithError(err error) *logrus.Entry {
	return globalLogger.WithError(err)
}
