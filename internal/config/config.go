package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Feed       FeedConfig       `mapstructure:"feed"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigin   string        `mapstructure:"cors_origin"`
	// MaxUploadSize caps multipart bodies for video/image uploads.
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
	MinPoolSize    uint64        `mapstructure:"min_pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topics       Topics        `mapstructure:"topics"`
	GroupID      string        `mapstructure:"group_id"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type Topics struct {
	UserEvents  string `mapstructure:"user_events"`
	VideoEvents string `mapstructure:"video_events"`
}

type JWTConfig struct {
	Secret            string        `mapstructure:"secret"`
	ExpireTime        time.Duration `mapstructure:"expire_time"`
	RefreshSecret     string        `mapstructure:"refresh_secret"`
	RefreshExpireTime time.Duration `mapstructure:"refresh_expire_time"`
	ResetTokenTTL     time.Duration `mapstructure:"reset_token_ttl"`
	SecureCookies     bool          `mapstructure:"secure_cookies"`
}

type StorageConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type PaginationConfig struct {
	DefaultLimit int64 `mapstructure:"default_limit"`
	MaxLimit     int64 `mapstructure:"max_limit"`
}

type FeedConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.max_upload_size", int64(512<<20))

	v.SetDefault("log.level", "info")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "vidtube")
	v.SetDefault("mongo.max_pool_size", 100)
	v.SetDefault("mongo.min_pool_size", 5)
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.min_idle_conns", 10)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topics.user_events", "user-events")
	v.SetDefault("kafka.topics.video_events", "video-events")
	v.SetDefault("kafka.group_id", "vidtube-worker-group")
	v.SetDefault("kafka.max_attempts", 5)
	v.SetDefault("kafka.retry_backoff", 500*time.Millisecond)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.expire_time", 24*time.Hour)
	v.SetDefault("jwt.refresh_expire_time", 10*24*time.Hour)
	v.SetDefault("jwt.reset_token_ttl", time.Hour)

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "vidtube-media")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("pagination.default_limit", 20)
	v.SetDefault("pagination.max_limit", 100)

	v.SetDefault("feed.cache_ttl", 30*time.Second)
	v.SetDefault("feed.query_timeout", 10*time.Second)
}

// LoadConfig reads CONFIG_PATH (default configs/config.yaml). A missing file is
// not an error: defaults plus VIDTUBE_* environment variables are enough to boot.
func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	return Load(configPath)
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VIDTUBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("jwt.refresh_secret is required")
	}
	if c.Pagination.DefaultLimit <= 0 || c.Pagination.MaxLimit < c.Pagination.DefaultLimit {
		return fmt.Errorf("invalid pagination limits: default=%d max=%d",
			c.Pagination.DefaultLimit, c.Pagination.MaxLimit)
	}
	return nil
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
