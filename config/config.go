package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "IM_NOTICE"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Ticket   TicketConfig   `mapstructure:"ticket"`
	Surfaces SurfacesConfig `mapstructure:"surfaces"`
	Bus      BusConfig      `mapstructure:"bus"`

	// [LIVE_LEVEL] shared with the slog handler so Watch can retune it
	level *slog.LevelVar
	v     *viper.Viper
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | text
	Otel   bool   `mapstructure:"otel"`
}

type HTTPConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

type BrokerConfig struct {
	// URL selects AMQP; an empty URL keeps traffic in-process.
	URL       string `mapstructure:"url"`
	Exchange  string `mapstructure:"exchange"`
	Queue     string `mapstructure:"queue"`
	Export    bool   `mapstructure:"export"`
	DedupSize int    `mapstructure:"dedup_size"`
}

type TicketConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type SurfacesConfig struct {
	// Names are registered at startup and never evicted.
	Names            []string      `mapstructure:"names"`
	MailboxSize      int           `mapstructure:"mailbox_size"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`
}

type BusConfig struct {
	LogEvents bool `mapstructure:"log_events"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.otel", false)

	v.SetDefault("http.address", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.poll_timeout", 25*time.Second)
	v.SetDefault("http.allowed_origins", []string{})

	v.SetDefault("grpc.address", ":9090")

	v.SetDefault("broker.url", "")
	v.SetDefault("broker.exchange", "im_notice")
	v.SetDefault("broker.queue", "im_notice")
	v.SetDefault("broker.export", false)
	v.SetDefault("broker.dedup_size", 4096)

	v.SetDefault("ticket.url", "")
	v.SetDefault("ticket.timeout", 15*time.Second)
	v.SetDefault("ticket.rate_per_second", 2.0)
	v.SetDefault("ticket.burst", 4)
	v.SetDefault("ticket.breaker_failures", 5)
	v.SetDefault("ticket.breaker_timeout", 30*time.Second)

	v.SetDefault("surfaces.names", []string{})
	v.SetDefault("surfaces.mailbox_size", 16)
	v.SetDefault("surfaces.send_timeout", 100*time.Millisecond)
	v.SetDefault("surfaces.idle_timeout", 15*time.Minute)
	v.SetDefault("surfaces.eviction_interval", 5*time.Minute)

	v.SetDefault("bus.log_events", false)
}

// Flags declares the command-line overrides; names mirror the config keys.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("im-notice", pflag.ContinueOnError)
	fs.String("log.level", "info", "log level (debug, info, warn, error)")
	fs.String("http.address", ":8080", "HTTP listen address")
	fs.String("grpc.address", ":9090", "gRPC listen address")
	fs.String("broker.url", "", "AMQP broker URL; empty keeps the bus in-process")
	fs.String("ticket.url", "", "support ticket service endpoint")
	fs.StringSlice("surfaces.names", nil, "surface names registered at startup")
	return fs
}

// LoadConfig resolves defaults, the optional file, IM_NOTICE_* env vars and
// flags, in increasing priority.
func LoadConfig(file string, args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	// [CHANGED_ONLY] unset flags must not shadow file or env values
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	cfg := &Config{level: new(slog.LevelVar), v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.level.Set(ParseLevel(cfg.Log.Level))
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is required"))
	}
	if c.GRPC.Address == "" {
		errs = append(errs, errors.New("grpc.address is required"))
	}
	if c.Broker.URL != "" && c.Broker.Exchange == "" {
		errs = append(errs, errors.New("broker.exchange is required with broker.url"))
	}
	if c.Broker.DedupSize <= 0 {
		errs = append(errs, errors.New("broker.dedup_size must be positive"))
	}
	if c.Ticket.Timeout <= 0 {
		errs = append(errs, errors.New("ticket.timeout must be positive"))
	}
	if c.Ticket.RatePerSecond <= 0 || c.Ticket.Burst <= 0 {
		errs = append(errs, errors.New("ticket rate and burst must be positive"))
	}
	if c.Surfaces.MailboxSize <= 0 {
		errs = append(errs, errors.New("surfaces.mailbox_size must be positive"))
	}
	if c.Surfaces.SendTimeout <= 0 {
		errs = append(errs, errors.New("surfaces.send_timeout must be positive"))
	}
	seen := make(map[string]struct{}, len(c.Surfaces.Names))
	for _, name := range c.Surfaces.Names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("surfaces.names must not contain blanks"))
			continue
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("surfaces.names: duplicate %q", name))
		}
		seen[name] = struct{}{}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level is the live log level; Watch updates it in place.
func (c *Config) Level() *slog.LevelVar {
	if c.level == nil {
		c.level = new(slog.LevelVar)
		c.level.Set(ParseLevel(c.Log.Level))
	}
	return c.level
}

// Watch re-reads the config file on change and applies the new log level.
// Other sections need a restart.
func (c *Config) Watch(logger *slog.Logger) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		lvl := ParseLevel(c.v.GetString("log.level"))
		c.Level().Set(lvl)
		logger.Info("CONFIG_RELOADED", "file", e.Name, "op", e.Op.String(), "log_level", lvl.String())
	})
	c.v.WatchConfig()
}

func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
