package logging

import (
	"fmt"
)

// Interface is the logger handed to every sft-agent component.
//
// It hides whether the backing implementation is zap (the CLI) or
// logrus (tests), so components never import either directly.
type Interface interface {
	WithField(key string, value interface{}) Interface
	WithError(err error) Interface

	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// WithFields attaches every entry of fields to the logger, in key order
// of the map iteration. Handy for stage summaries.
func WithFields(l Interface, fields map[string]interface{}) Interface {
	for k, v := range fields {
		l = l.WithField(k, v)
	}
	return l
}

func fmtMsg(format string, args []interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
