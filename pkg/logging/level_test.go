package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":      LevelInfo,
		"info":  LevelInfo,
		"InFo":  LevelInfo,
		"warn":  LevelWarn,
		"ERROR": LevelError,
		"debug": LevelDebug,
	}

	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, err := ParseLevel(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLevel_Validate(t *testing.T) {
	for _, in := range []string{"", "info", "Warn", "ERROR", "debug"} {
		assert.NoError(t, Level(in).Validate(), in)
	}
	assert.Error(t, Level("trace").Validate())
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "WARN", Level("warn").String())
}

func TestConfig_toZapCoreLevel(t *testing.T) {
	cases := map[string]struct {
		config Config
		want   zapcore.Level
	}{
		"default":         {config: Config{}, want: zapcore.InfoLevel},
		"warn":            {config: Config{Level: "warn"}, want: zapcore.WarnLevel},
		"error":           {config: Config{Level: LevelError}, want: zapcore.ErrorLevel},
		"debug overrides": {config: Config{Debug: true, Level: LevelError}, want: zapcore.DebugLevel},
		"explicit debug":  {config: Config{Level: "DEBUG"}, want: zapcore.DebugLevel},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := tc.config.toZapCoreLevel()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := Level("nope").toZapCoreLevel()
	assert.Error(t, err)
}
