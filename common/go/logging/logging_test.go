package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInit(t *testing.T) {
	for _, encoding := range []string{"", "console", "json"} {
		cfg := Config{Level: zapcore.DebugLevel, Encoding: encoding}
		log, level, err := Init(&cfg)
		require.NoError(t, err)
		require.NotNil(t, log)
		require.Equal(t, zapcore.DebugLevel, level.Level())
	}

	cfg := DefaultConfig()
	cfg.Encoding = "xml"
	_, _, err := Init(&cfg)
	require.Error(t, err)
}
