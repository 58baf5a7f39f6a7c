package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	DirectoryLiveKit = "livekit"
	DirectoryMemory  = "memory"

	LockLocal  = "local"
	LockValkey = "valkey"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	LogLevel      string        `mapstructure:"log_level"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	MediaTokenTTL time.Duration `mapstructure:"media_token_ttl"`

	LiveKit    LiveKitConfig    `mapstructure:"livekit"`
	Capability CapabilityConfig `mapstructure:"capability"`
	Directory  DirectoryConfig  `mapstructure:"directory"`
	Lock       LockConfig       `mapstructure:"lock"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Events     EventsConfig     `mapstructure:"events"`
}

type LiveKitConfig struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	// WSURL is handed to clients; defaults to URL.
	WSURL string `mapstructure:"ws_url"`
}

type CapabilityConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type DirectoryConfig struct {
	Driver string `mapstructure:"driver"`
}

type LockConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type ValkeyConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type RateLimitConfig struct {
	StageActions int           `mapstructure:"stage_actions"`
	Interval     time.Duration `mapstructure:"interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type EventsConfig struct {
	Backpressure string `mapstructure:"backpressure"`
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml (or file when set),
// then LIVESTAGE_* environment overrides such as LIVESTAGE_LIVEKIT_API_KEY.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	if file == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		file = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(file)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("livestage")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", file).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", file).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.LiveKit.WSURL == "" {
		cfg.LiveKit.WSURL = cfg.LiveKit.URL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("directory", cfg.Directory.Driver).
		Str("lock", cfg.Lock.Driver).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 4096)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("media_token_ttl", "6h")

	// Every key needs a default for AutomaticEnv to see it during Unmarshal.
	v.SetDefault("livekit.url", "")
	v.SetDefault("livekit.api_key", "")
	v.SetDefault("livekit.api_secret", "")
	v.SetDefault("livekit.ws_url", "")
	v.SetDefault("capability.secret", "")
	v.SetDefault("capability.ttl", "0s")
	v.SetDefault("directory.driver", DirectoryLiveKit)
	v.SetDefault("lock.driver", LockLocal)
	v.SetDefault("lock.ttl", "5s")
	v.SetDefault("valkey.addr", "127.0.0.1:6379")
	v.SetDefault("valkey.password", "")
	v.SetDefault("rate_limit.stage_actions", 10)
	v.SetDefault("rate_limit.interval", "10s")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("events.backpressure", "kick")
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Directory.Driver {
	case DirectoryLiveKit:
		if c.LiveKit.URL == "" || c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
			errs = append(errs, errors.New("livekit.url, livekit.api_key and livekit.api_secret are required"))
		}
	case DirectoryMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown directory.driver %q", c.Directory.Driver))
	}
	switch c.Lock.Driver {
	case LockLocal, LockValkey:
	default:
		errs = append(errs, fmt.Errorf("unknown lock.driver %q", c.Lock.Driver))
	}
	if c.Capability.Secret == "" {
		errs = append(errs, errors.New("capability.secret is required"))
	}
	return errors.Join(errs...)
}
