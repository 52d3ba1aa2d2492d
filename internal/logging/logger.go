package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

type Logger struct {
	base  *log.Logger
	err   *log.Logger
	errMu sync.Mutex
	errW  io.WriteCloser
}

type Options struct {
	// ErrorsPath mirrors error level records into a file, truncated on startup. Empty disables the mirror.
	ErrorsPath string
	Verbose    bool
	Output     io.Writer
}

func New(opts Options) (*Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	l := &Logger{
		base: log.NewWithOptions(out, log.Options{Prefix: "publisher", ReportTimestamp: true, Level: level}),
	}
	l.err = l.base

	if opts.ErrorsPath != "" {
		if err := os.Truncate(opts.ErrorsPath, 0); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		f, err := os.OpenFile(opts.ErrorsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.errW = f
		l.err = log.NewWithOptions(io.MultiWriter(out, f), log.Options{
			Prefix:          "publisher",
			ReportTimestamp: true,
			ReportCaller:    true,
			Level:           level,
		})
	}
	return l, nil
}

// Nop discards everything; used by tests and callers that do not care about logs.
func Nop() *Logger {
	b := log.NewWithOptions(io.Discard, log.Options{})
	return &Logger{base: b, err: b}
}

// With returns a logger carrying the given key/value pairs on every record.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{base: l.base.With(keyvals...), err: l.err.With(keyvals...)}
}

func (l *Logger) Close() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if l.errW != nil {
		return l.errW.Close()
	}
	return nil
}

func (l *Logger) Debugf(format string, args ...any) {
	l.base.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.base.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.base.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	l.err.Errorf(format, args...)
}

func (l *Logger) Error(err error) {
	if err == nil {
		return
	}
	l.Errorf("%v", err)
}
