package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const envPrefix = "VOICEMESH"

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	LogLevel   string `mapstructure:"log_level"`
	Secret     string `mapstructure:"secret"`

	Signal SignalConfig `mapstructure:"signal"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Store  StoreConfig  `mapstructure:"store"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

type SignalConfig struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	QueueSize    int           `mapstructure:"queue_size"`
	Backpressure string        `mapstructure:"backpressure"`
	JoinLimit    int           `mapstructure:"join_limit"`
	JoinInterval time.Duration `mapstructure:"join_interval"`
	RequireAuth  bool          `mapstructure:"require_auth"`
}

// PongWait is how long a silent connection survives: a bit more than one ping period.
func (s SignalConfig) PongWait() time.Duration {
	return s.PingPeriod * 10 / 9
}

type AuthConfig struct {
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	SessionName string        `mapstructure:"session_name"`
}

type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig enables redis-backed change notifications and token
// revocation. An empty Addr keeps both in process.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChangesTopic  string `mapstructure:"changes_topic"`
	RevokedPrefix string `mapstructure:"revoked_prefix"`
}

func configEnv() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return env
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readFile(v *viper.Viper, fileName string) {
	v.SetConfigFile(fileName)
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
		return
	}
	log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
}

// Load reads config/config.<CONFIG_ENV>.yaml.
func Load() (*Config, error) {
	return LoadFrom(fmt.Sprintf("config/config.%s.yaml", configEnv()))
}

func LoadFrom(fileName string) (*Config, error) {
	v := newViper()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "")

	v.SetDefault("signal.read_limit", 32768)
	v.SetDefault("signal.ping_period", "54s")
	v.SetDefault("signal.write_wait", "5s")
	v.SetDefault("signal.send_buffer", 32)
	v.SetDefault("signal.queue_size", 1024)
	v.SetDefault("signal.backpressure", "simple")
	v.SetDefault("signal.join_limit", 10)
	v.SetDefault("signal.join_interval", "10s")
	v.SetDefault("signal.require_auth", false)

	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.session_name", "VoiceSessions")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.changes_topic", "voicemesh:channels")
	v.SetDefault("redis.revoked_prefix", "voicemesh:revoked:")

	readFile(v, fileName)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("secret must be set (%s_SECRET)", envPrefix)
	}
	if cfg.Store.Driver != "memory" && cfg.Store.Driver != "postgres" {
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Str("store", cfg.Store.Driver).Msg("server config")
	return &cfg, nil
}

// ParseLevel maps a config level to zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
