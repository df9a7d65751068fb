package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type ClientConfig struct {
	Server    string `mapstructure:"server"`
	TokenFile string `mapstructure:"token_file"`
	LogLevel  string `mapstructure:"log_level"`

	ICEServers            []string      `mapstructure:"ice_servers"`
	NegotiationTimeout    time.Duration `mapstructure:"negotiation_timeout"`
	MaxNegotiationRetries int           `mapstructure:"max_negotiation_retries"`

	Speaking SpeakingConfig `mapstructure:"speaking"`
	Media    MediaConfig    `mapstructure:"media"`
}

type SpeakingConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	Threshold      float64       `mapstructure:"threshold"`
}

type MediaConfig struct {
	// Source is an Ogg/Opus file to loop as the microphone; empty sends silence.
	Source string `mapstructure:"source"`
	// PlayoutDir receives a live Ogg stream per remote participant for a
	// local player to follow; empty discards remote audio.
	PlayoutDir string `mapstructure:"playout_dir"`
}

// ClientViper returns a viper instance with client defaults, so cobra flags
// can be bound to it before LoadClient reads the file.
func ClientViper() *viper.Viper {
	v := newViper()
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("token_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("negotiation_timeout", "15s")
	v.SetDefault("max_negotiation_retries", 3)
	v.SetDefault("speaking.sample_interval", "16ms")
	v.SetDefault("speaking.threshold", 0.1)
	v.SetDefault("media.source", "")
	v.SetDefault("media.playout_dir", "")
	return v
}

// LoadClient reads fileName into v; an empty fileName means
// config/client.<CONFIG_ENV>.yaml.
func LoadClient(v *viper.Viper, fileName string) (*ClientConfig, error) {
	if fileName == "" {
		fileName = fmt.Sprintf("config/client.%s.yaml", configEnv())
	}
	readFile(v, fileName)

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if cfg.Server == "" {
		return nil, fmt.Errorf("server address must be set")
	}
	if cfg.Speaking.SampleInterval <= 0 {
		return nil, fmt.Errorf("speaking.sample_interval must be positive")
	}
	return &cfg, nil
}
