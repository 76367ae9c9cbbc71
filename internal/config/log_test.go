package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLogSetDefaults(t *testing.T) {
	viper.Reset()

	var l Log
	l.Set()

	assert.True(t, l.Console, "console logging is on unless turned off")
	assert.Equal(t, 100, l.MaxSize)
	assert.Empty(t, l.Level)
	assert.Empty(t, l.File)
}

func TestLogSetFromConfig(t *testing.T) {
	viper.Reset()
	viper.Set("log", map[string]interface{}{
		"level":      "debug",
		"console":    false,
		"file":       "/var/log/emcee.log",
		"maxage":     7,
		"maxbackups": 3,
	})

	var l Log
	l.Set()

	assert.Equal(t, "debug", l.Level)
	assert.False(t, l.Console)
	assert.Equal(t, "/var/log/emcee.log", l.File)
	assert.Equal(t, 7, l.MaxAge)
	assert.Equal(t, 3, l.MaxBackups)
	assert.Equal(t, 100, l.MaxSize, "unset keys keep their defaults")
}

func TestLogLevelOverridesBlock(t *testing.T) {
	viper.Reset()
	viper.Set("log", map[string]interface{}{"level": "warn"})
	viper.Set("log.level", "trace")

	var l Log
	l.Set()

	assert.Equal(t, "trace", l.Level, "the flag-backed key wins over the block")
}
