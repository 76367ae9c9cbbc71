package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Log controls the process-wide logger. It is applied by the root command
// before any subcommand runs, so unlike Server it cannot wait for the serve
// wiring.
type Log struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`

	// File enables rotated file logging when set.
	File       string `mapstructure:"file"`
	MaxAge     int    `mapstructure:"maxage"`  // days
	MaxSize    int    `mapstructure:"maxsize"` // megabytes
	MaxBackups int    `mapstructure:"maxbackups"`
}

func (Log) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("log.level", "", "set log level")
	return viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log.level"))
}

func (l *Log) Set() {
	// defaults, the log block may be absent entirely
	l.Console = true
	l.MaxSize = 100

	if err := viper.UnmarshalKey("log", l); err != nil {
		panic(err)
	}

	// the level is also a flag and an env var, those bypass the block
	if v := viper.GetString("log.level"); v != "" {
		l.Level = v
	}
}
