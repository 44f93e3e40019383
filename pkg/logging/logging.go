package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by the agent components.
const (
	RunIDKey = "run-id"
	StageKey = "stage"
)

// NewLogger builds a zap logger writing to the rolling file configured in
// config and, unless disabled, to stdout.
func NewLogger(config *Config) (*zap.Logger, error) {
	return newLogger(config, os.Stdout)
}

func newLogger(config *Config, console io.Writer) (*zap.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	level, err := config.toZapCoreLevel()
	if err != nil {
		return nil, fmt.Errorf("constructing log level: %w", err)
	}
	encoder := newEncoder(config)

	cores := []zapcore.Core{}
	if config.Filename != "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(&config.Logger), level))
	}
	if !config.DisableConsoleOutput {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(console)), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

func newEncoder(config *Config) zapcore.Encoder {
	if config.Debug {
		ec := zap.NewDevelopmentEncoderConfig()
		if config.EncodeTimeAsRFC3339Nano {
			ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		}
		return zapcore.NewConsoleEncoder(ec)
	}

	ec := zap.NewProductionEncoderConfig()
	if config.EncodeTimeAsRFC3339Nano {
		ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	return zapcore.NewJSONEncoder(ec)
}

// NewTestLogger returns a logrus backed logger for tests.
func NewTestLogger() Interface {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	return ForLogrus(logrus.NewEntry(l))
}
