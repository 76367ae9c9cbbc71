package config

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type HLS struct {
	// Mode selects how segments get produced: "ondemand" transcodes each
	// requested segment on the fly, "session" runs one continuous job per
	// media file and serves its output from disk.
	Mode string `mapstructure:"mode"`

	SegmentLength    float64 `mapstructure:"segment-length"`
	KeyframeInterval float64 `mapstructure:"keyframe-interval"`
	AllowCopy        bool    `mapstructure:"allow-copy"`

	ProbeTimeout   time.Duration `mapstructure:"probe-timeout"`
	GraceTimeout   time.Duration `mapstructure:"grace-timeout"`
	ReapTimeout    time.Duration `mapstructure:"reap-timeout"`
	SessionTimeout time.Duration `mapstructure:"session-timeout"`

	SessionDir string `mapstructure:"session-dir"`

	Cache    bool   `mapstructure:"cache"`
	CacheDir string `mapstructure:"cache-dir"`

	FFmpegBinary  string `mapstructure:"ffmpeg-binary"`
	FFprobeBinary string `mapstructure:"ffprobe-binary"`
}

type Server struct {
	PProf bool

	Cert   string
	Key    string
	Bind   string
	Static string
	Proxy  bool

	MediaDir string

	HLS HLS
}

func (Server) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("pprof", false, "enable pprof endpoint available at /debug/pprof")
	if err := viper.BindPFlag("pprof", cmd.PersistentFlags().Lookup("pprof")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("bind", "127.0.0.1:8080", "address/port/socket to serve emcee")
	if err := viper.BindPFlag("bind", cmd.PersistentFlags().Lookup("bind")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("cert", "", "path to the SSL cert used to secure the emcee server")
	if err := viper.BindPFlag("cert", cmd.PersistentFlags().Lookup("cert")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key", "", "path to the SSL key used to secure the emcee server")
	if err := viper.BindPFlag("key", cmd.PersistentFlags().Lookup("key")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("static", "", "path to extra client files to serve")
	if err := viper.BindPFlag("static", cmd.PersistentFlags().Lookup("static")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("proxy", false, "allow reverse proxies")
	if err := viper.BindPFlag("proxy", cmd.PersistentFlags().Lookup("proxy")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("media-dir", ".", "root directory of the served media library")
	if err := viper.BindPFlag("media-dir", cmd.PersistentFlags().Lookup("media-dir")); err != nil {
		return err
	}

	return nil
}

func (s *Server) Set() {
	s.PProf = viper.GetBool("pprof")

	s.Cert = viper.GetString("cert")
	s.Key = viper.GetString("key")
	s.Bind = viper.GetString("bind")
	s.Static = viper.GetString("static")
	s.Proxy = viper.GetBool("proxy")

	s.MediaDir = viper.GetString("media-dir")

	//
	// HLS
	//
	if err := viper.UnmarshalKey("hls", &s.HLS); err != nil {
		panic(err)
	}

	// defaults

	if s.HLS.Mode == "" {
		s.HLS.Mode = "ondemand"
	}
	if s.HLS.Mode != "ondemand" && s.HLS.Mode != "session" {
		panic("hls.mode must be ondemand or session")
	}

	if s.HLS.SegmentLength <= 0 {
		s.HLS.SegmentLength = 10
	}
	if s.HLS.KeyframeInterval <= 0 {
		s.HLS.KeyframeInterval = s.HLS.SegmentLength
	}

	if s.HLS.Mode == "session" && s.HLS.SessionDir == "" {
		var err error
		s.HLS.SessionDir, err = os.MkdirTemp(os.TempDir(), "emcee-hls")
		if err != nil {
			panic(err)
		}
	} else if s.HLS.SessionDir != "" {
		err := os.MkdirAll(s.HLS.SessionDir, 0755)
		if err != nil {
			panic(err)
		}
	}

	if s.HLS.Cache && s.HLS.CacheDir != "" {
		err := os.MkdirAll(s.HLS.CacheDir, 0755)
		if err != nil {
			panic(err)
		}
	}

	if s.HLS.FFmpegBinary == "" {
		s.HLS.FFmpegBinary = "ffmpeg"
	}

	if s.HLS.FFprobeBinary == "" {
		s.HLS.FFprobeBinary = "ffprobe"
	}
}
