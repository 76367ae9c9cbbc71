package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/web-emcee/emcee/internal/config"
)

// configuration is read from /etc/emcee/, the working directory, or the
// file --config points at; environment overrides carry the EMCEE_ prefix
const defCfgPath = "/etc/emcee/"
const envPrefix = "EMCEE"

var rootCmd = &cobra.Command{
	Use:     "emcee",
	Short:   "Emcee media server CLI.",
	Long:    `Emcee HTTP media server with on-demand HLS transcoding.`,
	Version: "1.0.0",
}

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

var onConfigLoad []func()

func init() {
	var cfgFile string
	logConfig := &config.Log{}

	cobra.OnInitialize(func() {
		loadConfigFile(cfgFile)
		logConfig.Set()
		setupLogging(logConfig)

		if file := viper.ConfigFileUsed(); file != "" {
			viper.OnConfigChange(func(fsnotify.Event) {
				log.Info().Msg("config file reloaded")
				for _, fn := range onConfigLoad {
					fn()
				}
			})
			viper.WatchConfig()

			log.Info().Str("config", file).Msg("preflight complete with config file")
		} else {
			log.Warn().Msg("preflight complete without config file")
		}

		for _, fn := range onConfigLoad {
			fn()
		}
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	_ = logConfig.Init(rootCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func loadConfigFile(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		if runtime.GOOS == "linux" {
			viper.AddConfigPath(defCfgPath)
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// a missing default config file is fine, a missing explicit one is not
	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
}

func setupLogging(cfg *config.Log) {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out: os.Stderr,
		})
	}

	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxAge:     cfg.MaxAge,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
		}

		// SIGHUP rotates the file, for logrotate setups
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)

		go func() {
			for range hup {
				_ = rotated.Rotate()
			}
		}()

		writers = append(writers, rotated)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(io.MultiWriter(writers...))

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			log.Warn().Str("level", cfg.Level).Msg("unknown log level, using info")
		} else {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Bool("console", cfg.Console).
		Str("file", cfg.File).
		Msg("logging configured")
}
