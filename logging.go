package gfxcore

import (
	"io"
	"log"
)

// Logger is the structured line sink the core writes diagnostics and
// validation messages to. It never decides where those lines end up.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Loggers bundles the three severities this codebase has always kept as
// separate destinations (info/warn/error), matching the log.Logger triplet
// the rest of this renderer core is built on.
type Loggers struct {
	Info  *log.Logger
	Warn  *log.Logger
	Error *log.Logger
}

func (l Loggers) Infof(format string, args ...interface{}) {
	if l.Info != nil {
		l.Info.Printf(format, args...)
	}
}

func (l Loggers) Warnf(format string, args ...interface{}) {
	if l.Warn != nil {
		l.Warn.Printf(format, args...)
	}
}

func (l Loggers) Errorf(format string, args ...interface{}) {
	if l.Error != nil {
		l.Error.Printf(format, args...)
	}
}

// NewLoggers builds a Loggers triplet writing to w, prefixed the way this
// codebase's info/error/warn logs already are.
func NewLoggers(w io.Writer) Loggers {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return Loggers{
		Info:  log.New(w, "INFO: ", flags),
		Warn:  log.New(w, "WARNING: ", flags),
		Error: log.New(w, "ERROR: ", flags),
	}
}
