package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level   string
		enabled zap.AtomicLevel
		want    bool
	}{
		{"debug", zap.NewAtomicLevelAt(zap.DebugLevel), true},
		{"warn", zap.NewAtomicLevelAt(zap.InfoLevel), false},
		{"", zap.NewAtomicLevelAt(zap.InfoLevel), true},
		{"nonsense", zap.NewAtomicLevelAt(zap.DebugLevel), false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := New(tt.level, "production")
			require.NoError(t, err)
			assert.Equal(t, tt.want, log.Core().Enabled(tt.enabled.Level()))
		})
	}
}

func TestNewDevelopment(t *testing.T) {
	log, err := New("info", "development")
	require.NoError(t, err)
	log.Info("development logger works", zap.String("key", "value"))
}
