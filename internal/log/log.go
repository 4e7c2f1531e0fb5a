package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	mu     sync.RWMutex
	logger = newFallback()
)

// newFallback serves log calls made before Init: info level to stderr.
func newFallback() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&formatter{pattern: DefaultPattern, time: DefaultTimeLayout})
	return &logrusAdapter{entry: logrus.NewEntry(l)}
}

// GetLogger returns the process logger. It is usable before Init.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the process logger with one built from cfg, writing to
// stdout plus the configured file appender.
func Init(cfg *Config) error {
	l, err := New(cfg, os.Stdout)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// New builds a logger from cfg. out may be nil when only the file appender
// is wanted.
func New(cfg *Config, out io.Writer) (Logger, error) {
	c := cfg.withDefaults()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetReportCaller(c.ReportCaller)
	l.SetFormatter(&formatter{
		pattern: c.Pattern,
		time:    c.Time,
	})

	w := NewMultiWriter()
	if out != nil {
		w.Add(out)
	}
	if c.File.Filename != "" {
		w.AddFileAppender(c.File)
	}
	l.SetOutput(w)

	return &logrusAdapter{entry: logrus.NewEntry(l)}, nil
}
