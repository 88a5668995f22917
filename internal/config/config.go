// Package config loads pixstore settings from defaults, an optional config file,
// a .env file and PIXSTORE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PIXSTORE_PIX_KEY.
const EnvPrefix = "PIXSTORE"

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Pix         PixConfig         `mapstructure:"pix"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Delivery    DeliveryConfig    `mapstructure:"delivery"`
	RabbitMQ    RabbitMQConfig    `mapstructure:"rabbitmq"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Orders      OrdersConfig      `mapstructure:"orders"`
	Fulfillment FulfillmentConfig `mapstructure:"fulfillment"`
	Reconciler  ReconcilerConfig  `mapstructure:"reconciler"`
	Sweeper     SweeperConfig     `mapstructure:"sweeper"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
}

type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Port string `mapstructure:"port" validate:"required"`
	Env  string `mapstructure:"env" validate:"oneof=dev staging prod test"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	File   string `mapstructure:"file"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type PixConfig struct {
	Key          string `mapstructure:"key" validate:"required,max=77"`
	MerchantName string `mapstructure:"merchant_name" validate:"required"`
	MerchantCity string `mapstructure:"merchant_city" validate:"required"`
}

type GatewayConfig struct {
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=0"`
	Backoff     time.Duration `mapstructure:"backoff" validate:"gte=0"`
}

type DeliveryConfig struct {
	URL          string        `mapstructure:"url" validate:"omitempty,url"`
	ArtifactPath string        `mapstructure:"artifact_path" validate:"required"`
	Filename     string        `mapstructure:"filename" validate:"required"`
	Caption      string        `mapstructure:"caption"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=1"`
	Backoff      time.Duration `mapstructure:"backoff" validate:"gte=0"`
}

type RabbitMQConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue" validate:"required"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic" validate:"required"`
}

type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db" validate:"gte=0"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl" validate:"gte=0"`
}

type OrdersConfig struct {
	PendingTTL time.Duration `mapstructure:"pending_ttl" validate:"gte=0"`
}

type FulfillmentConfig struct {
	Workers      int           `mapstructure:"workers" validate:"gte=1"`
	RedriveAfter time.Duration `mapstructure:"redrive_after" validate:"gte=0"`
}

type ReconcilerConfig struct {
	Workers      int           `mapstructure:"workers" validate:"gte=1"`
	QueueSize    int           `mapstructure:"queue_size" validate:"gte=1"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout" validate:"gte=0"`
}

type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required,min=8"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

type CatalogConfig struct {
	Seed bool `mapstructure:"seed"`
}

// SetDefaults registers every key with its default so environment overrides
// reach keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pixstore")
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "pixstore.db")

	v.SetDefault("pix.key", "")
	v.SetDefault("pix.merchant_name", "ProxyBat")
	v.SetDefault("pix.merchant_city", "SAO PAULO")

	v.SetDefault("gateway.base_url", "https://api.mercadopago.com")
	v.SetDefault("gateway.access_token", "")
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("gateway.max_retries", 4)
	v.SetDefault("gateway.backoff", 500*time.Millisecond)

	v.SetDefault("delivery.url", "")
	v.SetDefault("delivery.artifact_path", "proxy.txt")
	v.SetDefault("delivery.filename", "proxies.txt")
	v.SetDefault("delivery.caption", "Pagamento confirmado! Aqui estão seus proxies.")
	v.SetDefault("delivery.timeout", 15*time.Second)
	v.SetDefault("delivery.max_attempts", 5)
	v.SetDefault("delivery.backoff", time.Second)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.queue", "fulfillment_queue")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "pixstore.orders")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.idempotency_ttl", 72*time.Hour)

	v.SetDefault("orders.pending_ttl", 30*time.Minute)
	v.SetDefault("fulfillment.workers", 4)
	v.SetDefault("fulfillment.redrive_after", 10*time.Minute)
	v.SetDefault("reconciler.workers", 4)
	v.SetDefault("reconciler.queue_size", 256)
	v.SetDefault("reconciler.drain_timeout", 30*time.Second)
	v.SetDefault("sweeper.interval", time.Minute)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("catalog.seed", true)
}

// Load reads configuration into a validated Config. configFile may be empty.
func Load(v *viper.Viper, configFile string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	// Comma-separated broker lists arrive from the environment as one string.
	cfg.Kafka.Brokers = splitCSV(cfg.Kafka.Brokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.App.Env == "prod" && c.Gateway.AccessToken == "" {
		return errors.New("invalid config: gateway.access_token is required in prod")
	}
	return nil
}

func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
