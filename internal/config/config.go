// Package config loads the server configuration.
//
// Configuration comes from a single YAML file named by the --config flag or
// the RTCPEER_CONFIG environment variable. There is no discovery: without
// either, the defaults apply. A few command line flags override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const EnvConfig = "RTCPEER_CONFIG"

const (
	EnginePion   = "pion"
	EngineMemory = "memory"

	FormatConsole = "console"
	FormatJSON    = "json"
)

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Log        LogConfig         `yaml:"log"`
	Media      MediaConfig       `yaml:"media"`
	ICEServers []ICEServerConfig `yaml:"ice_servers"`
}

type ServerConfig struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// StaticDir is served at / when set.
	StaticDir string `yaml:"static_dir"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`

	// Format is "console" or "json".
	Format string `yaml:"format"`

	// PionLevel filters pion's internal logging.
	PionLevel string `yaml:"pion_level"`
}

// MediaConfig selects the media engine and the connection parameters every
// connection shares. Bitrates are in kbps, zero leaves them to the engine.
type MediaConfig struct {
	Engine                   string `yaml:"engine"`
	VideoCallEnabled         bool   `yaml:"video_call_enabled"`
	Loopback                 bool   `yaml:"loopback"`
	VideoWidth               int    `yaml:"video_width"`
	VideoHeight              int    `yaml:"video_height"`
	VideoFPS                 int    `yaml:"video_fps"`
	VideoStartBitrate        int    `yaml:"video_start_bitrate"`
	VideoCodec               string `yaml:"video_codec"`
	VideoCodecHWAcceleration bool   `yaml:"video_codec_hw_acceleration"`
	AudioStartBitrate        int    `yaml:"audio_start_bitrate"`
	AudioCodec               string `yaml:"audio_codec"`
	NoAudioProcessing        bool   `yaml:"no_audio_processing"`
	CPUOveruseDetection      bool   `yaml:"cpu_overuse_detection"`
}

type ICEServerConfig struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username"`
	Credential string   `yaml:"credential"`
}

func Default() *Config {
	params := domain.DefaultConnectionParameters()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:     "info",
			Format:    FormatConsole,
			PionLevel: "warn",
		},
		Media: MediaConfig{
			Engine:                   EnginePion,
			VideoCallEnabled:         params.VideoCallEnabled,
			Loopback:                 params.Loopback,
			VideoWidth:               params.VideoWidth,
			VideoHeight:              params.VideoHeight,
			VideoFPS:                 params.VideoFPS,
			VideoStartBitrate:        params.VideoStartBitrate,
			VideoCodec:               string(params.VideoCodec),
			VideoCodecHWAcceleration: params.VideoCodecHWAcceleration,
			AudioStartBitrate:        params.AudioStartBitrate,
			AudioCodec:               string(params.AudioCodec),
			NoAudioProcessing:        params.NoAudioProcessing,
			CPUOveruseDetection:      params.CPUOveruseDetection,
		},
		ICEServers: []ICEServerConfig{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// LoadFile reads path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromArgs parses command line arguments, loads the config file they or the
// environment name, applies flag overrides and validates the result. It
// returns pflag.ErrHelp when help was requested.
func FromArgs(name string, args []string) (*Config, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	path := fs.String("config", os.Getenv(EnvConfig), "path to the YAML config file (env "+EnvConfig+")")
	addr := fs.String("addr", "", "HTTP listen address")
	level := fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	format := fs.String("log-format", "", "log format (console, json)")
	engine := fs.String("engine", "", "media engine (pion, memory)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *path != "" {
		var err error
		if cfg, err = LoadFile(*path); err != nil {
			return nil, err
		}
	}

	if fs.Changed("addr") {
		cfg.Server.Addr = *addr
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *level
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = *format
	}
	if fs.Changed("engine") {
		cfg.Media.Engine = *engine
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := zerolog.ParseLevel(c.Log.PionLevel); err != nil {
		errs = append(errs, fmt.Errorf("log.pion_level: %w", err))
	}
	if c.Log.Format != FormatConsole && c.Log.Format != FormatJSON {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if c.Media.Engine != EnginePion && c.Media.Engine != EngineMemory {
		errs = append(errs, fmt.Errorf("media.engine: unknown engine %q", c.Media.Engine))
	}
	if _, err := domain.ParseAudioCodec(strings.ToUpper(c.Media.AudioCodec)); err != nil {
		errs = append(errs, fmt.Errorf("media.audio_codec: %w", err))
	}
	if _, err := domain.ParseVideoCodec(strings.ToUpper(c.Media.VideoCodec)); err != nil {
		errs = append(errs, fmt.Errorf("media.video_codec: %w", err))
	}
	if c.Media.VideoStartBitrate < 0 || c.Media.AudioStartBitrate < 0 {
		errs = append(errs, errors.New("media bitrates must not be negative"))
	}
	for i, s := range c.ICEServers {
		if len(s.URLs) == 0 {
			errs = append(errs, fmt.Errorf("ice_servers[%d]: no urls", i))
		}
	}
	return errors.Join(errs...)
}

// ConnectionParameters assumes Validate has passed.
func (c *Config) ConnectionParameters() domain.ConnectionParameters {
	m := c.Media
	return domain.ConnectionParameters{
		VideoCallEnabled:         m.VideoCallEnabled,
		Loopback:                 m.Loopback,
		VideoWidth:               m.VideoWidth,
		VideoHeight:              m.VideoHeight,
		VideoFPS:                 m.VideoFPS,
		VideoStartBitrate:        m.VideoStartBitrate,
		VideoCodec:               domain.VideoCodec(strings.ToUpper(m.VideoCodec)),
		VideoCodecHWAcceleration: m.VideoCodecHWAcceleration,
		AudioStartBitrate:        m.AudioStartBitrate,
		AudioCodec:               domain.AudioCodec(strings.ToUpper(m.AudioCodec)),
		NoAudioProcessing:        m.NoAudioProcessing,
		CPUOveruseDetection:      m.CPUOveruseDetection,
	}
}

func (c *Config) SignalingParameters() domain.SignalingParameters {
	servers := make([]domain.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		servers = append(servers, domain.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return domain.SignalingParameters{ICEServers: servers}
}

// Level returns the parsed log level, or info if it does not parse.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func (c *Config) PionLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.PionLevel)
	if err != nil {
		return zerolog.WarnLevel
	}
	return level
}
