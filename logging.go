package sdfcull

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger writes DEBUG and INFO to one stream and WARN and ERROR to
// another, each line tagged with the component that logged it.
type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewLoggerTo(os.Stdout, os.Stderr, prefix, debug)
}

func NewLoggerTo(out, errOut io.Writer, prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) logf(dst *log.Logger, level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix == "" {
		dst.Printf("%s: %s", level, msg)
		return
	}
	dst.Printf("[%s] %s: %s", l.prefix, level, msg)
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if l.DebugEnabled() {
		l.logf(l.out, "DEBUG", format, args...)
	}
}

func (l *DefaultLogger) Infof(format string, args ...any) { l.logf(l.out, "INFO", format, args...) }

func (l *DefaultLogger) Warnf(format string, args ...any) { l.logf(l.err, "WARN", format, args...) }

func (l *DefaultLogger) Errorf(format string, args ...any) { l.logf(l.err, "ERROR", format, args...) }

// WithComponent tags every message from l with a pipeline component, such as
// the backend or a single pass. Debug state stays shared with l.
func WithComponent(l Logger, component string) Logger {
	if component == "" {
		return l
	}
	if c, ok := l.(componentLogger); ok {
		return componentLogger{Logger: c.Logger, tag: c.tag + "/" + component}
	}
	return componentLogger{Logger: l, tag: component}
}

type componentLogger struct {
	Logger
	tag string
}

func (c componentLogger) Debugf(format string, args ...any) {
	c.Logger.Debugf("%s: "+format, append([]any{c.tag}, args...)...)
}

func (c componentLogger) Infof(format string, args ...any) {
	c.Logger.Infof("%s: "+format, append([]any{c.tag}, args...)...)
}

func (c componentLogger) Warnf(format string, args ...any) {
	c.Logger.Warnf("%s: "+format, append([]any{c.tag}, args...)...)
}

func (c componentLogger) Errorf(format string, args ...any) {
	c.Logger.Errorf("%s: "+format, append([]any{c.tag}, args...)...)
}

type nopLogger struct{}

func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool    { return false }
func (nopLogger) SetDebug(bool)         {}
func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
