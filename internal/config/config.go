package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Platform kinds selectable through platform.kind.
const (
	PlatformIntent    = "intent"
	PlatformURLScheme = "urlscheme"
)

// Config captures the full configuration surface for the application.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Scylla    ScyllaConfig    `mapstructure:"scylla"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Telephony TelephonyConfig `mapstructure:"telephony"`
	Throttle  ThrottleConfig  `mapstructure:"throttle"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// InvokeWait bounds how long a channel invocation blocks before answering 202.
	InvokeWait time.Duration `mapstructure:"invoke_wait"`
}

// BridgeConfig configures the websocket listener front-ends attach through.
type BridgeConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	TicketTTL         time.Duration `mapstructure:"ticket_ttl"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

// PlatformConfig selects the capability variant behind the dispatcher.
type PlatformConfig struct {
	Kind        string `mapstructure:"kind"`
	Permission  string `mapstructure:"permission"`
	RequestCode int    `mapstructure:"request_code"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

type ScyllaConfig struct {
	Hosts       []string      `mapstructure:"hosts"`
	Port        int           `mapstructure:"port"`
	Keyspace    string        `mapstructure:"keyspace"`
	Consistency string        `mapstructure:"consistency"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	ClientID        string        `mapstructure:"client_id"`
	IntentTopic     string        `mapstructure:"intent_topic"`
	OutcomeTopic    string        `mapstructure:"outcome_topic"`
	ReceiptTopic    string        `mapstructure:"receipt_topic"`
	ConsumerGroupID string        `mapstructure:"consumer_group_id"`
	CommitInterval  time.Duration `mapstructure:"commit_interval"`
	Partitions      int           `mapstructure:"partitions"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	GrantTTL     time.Duration `mapstructure:"grant_ttl"`
}

type TelemetryConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
}

// TelephonyConfig tunes the provider that actually launches calls.
type TelephonyConfig struct {
	ProviderName       string        `mapstructure:"provider_name"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	SuccessRate        float64       `mapstructure:"success_rate"`
	UnsupportedDevices []string      `mapstructure:"unsupported_devices"`
}

type ThrottleConfig struct {
	PerDeviceLaunches int           `mapstructure:"per_device_launches"`
	SlotTTL           time.Duration `mapstructure:"slot_ttl"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("DIRECTCALL")
	v.SetEnvKeyReplacer(NewEnvReplacer())
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot be composed from.
func (c *Config) Validate() error {
	switch c.Platform.Kind {
	case PlatformIntent, PlatformURLScheme:
	default:
		return fmt.Errorf("config: unknown platform kind %q", c.Platform.Kind)
	}
	if c.Platform.Kind == PlatformIntent && c.Kafka.IntentTopic == "" {
		return fmt.Errorf("config: kafka.intent_topic is required for the intent platform")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "direct-calling")
	v.SetDefault("app.env", "development")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.invoke_wait", 2*time.Second)
	v.SetDefault("bridge.port", 8081)
	v.SetDefault("bridge.read_header_timeout", 10*time.Second)
	v.SetDefault("bridge.write_timeout", 10*time.Second)
	v.SetDefault("bridge.ping_interval", 30*time.Second)
	v.SetDefault("bridge.ticket_ttl", 5*time.Minute)
	v.SetDefault("platform.kind", PlatformIntent)
	v.SetDefault("platform.permission", "CALL_PHONE")
	v.SetDefault("platform.request_code", 1001)
	v.SetDefault("redis.grant_ttl", 10*time.Minute)
	v.SetDefault("kafka.partitions", 12)
	v.SetDefault("telephony.success_rate", 1.0)
	v.SetDefault("telephony.request_timeout", 10*time.Second)
	v.SetDefault("throttle.per_device_launches", 1)
	v.SetDefault("throttle.slot_ttl", time.Minute)
}

// NewEnvReplacer standardizes environment variable names.
func NewEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
