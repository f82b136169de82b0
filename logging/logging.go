package logging

import (
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger routes messages to per-level charmbracelet loggers. Info, debug
// and trace output are off until explicitly enabled; warnings and errors
// always reach stderr.
type Logger struct {
	enableInfo      bool
	enableDebug     bool
	enableTracing   bool
	enableProfiling bool

	mutraceSubsystems sync.Mutex
	traceSubsystems   map[string]bool

	stdoutLogger  *log.Logger
	stderrLogger  *log.Logger
	infoLogger    *log.Logger
	warnLogger    *log.Logger
	errorLogger   *log.Logger
	debugLogger   *log.Logger
	traceLogger   *log.Logger
	profileLogger *log.Logger
}

func NewLogger(stdout io.Writer, stderr io.Writer) *Logger {
	return &Logger{
		stdoutLogger:    log.NewWithOptions(stdout, log.Options{}),
		stderrLogger:    log.NewWithOptions(stderr, log.Options{}),
		infoLogger:      log.NewWithOptions(stdout, log.Options{Prefix: "info"}),
		warnLogger:      log.NewWithOptions(stderr, log.Options{Prefix: "warn"}),
		errorLogger:     log.NewWithOptions(stderr, log.Options{Prefix: "error"}),
		debugLogger:     log.NewWithOptions(stderr, log.Options{Prefix: "debug", ReportTimestamp: true}),
		traceLogger:     log.NewWithOptions(stderr, log.Options{Prefix: "trace", ReportTimestamp: true}),
		profileLogger:   log.NewWithOptions(stderr, log.Options{Prefix: "profile"}),
		traceSubsystems: make(map[string]bool),
	}
}

// Discard returns a logger that drops everything, for tests and library
// callers that do not care about output.
func Discard() *Logger {
	return NewLogger(io.Discard, io.Discard)
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.infoLogger.Printf(format, args...)
}

func (l *Logger) Stdout(format string, args ...interface{}) {
	l.stdoutLogger.Printf(format, args...)
}

func (l *Logger) Stderr(format string, args ...interface{}) {
	l.stderrLogger.Printf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.enableInfo {
		l.infoLogger.Printf(format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.warnLogger.Printf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.errorLogger.Printf(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.enableDebug {
		l.debugLogger.Printf(format, args...)
	}
}

func (l *Logger) Trace(subsystem string, format string, args ...interface{}) {
	if !l.enableTracing {
		return
	}
	l.mutraceSubsystems.Lock()
	_, exists := l.traceSubsystems[subsystem]
	if !exists {
		_, exists = l.traceSubsystems["all"]
	}
	l.mutraceSubsystems.Unlock()
	if exists {
		l.traceLogger.Printf(subsystem+": "+format, args...)
	}
}

func (l *Logger) Profile(format string, args ...interface{}) {
	if l.enableProfiling {
		l.profileLogger.Printf(format, args...)
	}
}

func (l *Logger) EnableInfo() {
	l.enableInfo = true
}

func (l *Logger) EnableDebug() {
	l.enableDebug = true
}

func (l *Logger) EnableProfiling() {
	l.enableProfiling = true
}

func (l *Logger) ProfilingEnabled() bool {
	return l.enableProfiling
}

func (l *Logger) EnableTrace(traces string) {
	l.mutraceSubsystems.Lock()
	defer l.mutraceSubsystems.Unlock()

	l.enableTracing = true
	l.traceSubsystems = make(map[string]bool)
	for _, subsystem := range strings.Split(traces, ",") {
		if subsystem = strings.TrimSpace(subsystem); subsystem != "" {
			l.traceSubsystems[subsystem] = true
		}
	}
}
