package logging

import "go.uber.org/zap"

type zapWrapper struct {
	logger *zap.Logger
}

// ForZap adapts a zap logger to Interface.
func ForZap(logger *zap.Logger) Interface {
	return zapWrapper{logger: logger}
}

func (l zapWrapper) WithField(key string, value interface{}) Interface {
	return zapWrapper{l.logger.With(zap.Any(key, value))}
}

func (l zapWrapper) WithError(err error) Interface {
	return zapWrapper{l.logger.With(zap.Error(err))}
}

// skip one more frame so the caller is the component, not this wrapper
func (l zapWrapper) log() *zap.Logger { return l.logger.WithOptions(zap.AddCallerSkip(1)) }

func (l zapWrapper) Debug(msg string) { l.log().Debug(msg) }
func (l zapWrapper) Info(msg string)  { l.log().Info(msg) }
func (l zapWrapper) Warn(msg string)  { l.log().Warn(msg) }
func (l zapWrapper) Error(msg string) { l.log().Error(msg) }
func (l zapWrapper) Fatal(msg string) { l.log().Fatal(msg) }

func (l zapWrapper) Debugf(format string, args ...interface{}) {
	l.log().Debug(fmtMsg(format, args))
}
func (l zapWrapper) Infof(format string, args ...interface{}) {
	l.log().Info(fmtMsg(format, args))
}
func (l zapWrapper) Warnf(format string, args ...interface{}) {
	l.log().Warn(fmtMsg(format, args))
}
func (l zapWrapper) Errorf(format string, args ...interface{}) {
	l.log().Error(fmtMsg(format, args))
}
func (l zapWrapper) Fatalf(format string, args ...interface{}) {
	l.log().Fatal(fmtMsg(format, args))
}
