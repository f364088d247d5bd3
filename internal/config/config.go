// Package config loads and holds the application configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the top-level configuration shared by all three servers,
// mirroring the structure of configs/config.yaml.
type Config struct {
	Embedding EmbeddingServerConfig `mapstructure:"embedding_server"`
	Ingestion IngestionServerConfig `mapstructure:"ingestion_server"`
	Query     QueryServerConfig     `mapstructure:"query_server"`

	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Cache         CacheConfig         `mapstructure:"cache"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Provider      ProviderConfig      `mapstructure:"provider"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Operator      OperatorConfig      `mapstructure:"operator"`
	Log           LogConfig           `mapstructure:"log"`
}

// EmbeddingServerConfig holds settings for the embedding server.
type EmbeddingServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// IngestionServerConfig holds settings for the ingestion server.
type IngestionServerConfig struct {
	Port         string `mapstructure:"port"`
	Mode         string `mapstructure:"mode"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	WorkerPool   int    `mapstructure:"worker_pool"`
}

// QueryServerConfig holds settings for the query server.
type QueryServerConfig struct {
	Port                string  `mapstructure:"port"`
	Mode                string  `mapstructure:"mode"`
	SimilarityTopK      int     `mapstructure:"similarity_top_k"`
	SimilarityCutoff    float64 `mapstructure:"similarity_cutoff"`
	DefaultResponseMode string  `mapstructure:"default_response_mode"`
}

// DatabaseConfig groups all datastore connections.
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig holds the MySQL connection settings.
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ElasticsearchConfig holds the vector store settings.
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// KafkaConfig holds the ingestion task queue settings.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// MinIOConfig holds the raw-document archive settings.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// CacheConfig holds the embedding cache settings.
type CacheConfig struct {
	KeyPrefix string `mapstructure:"key_prefix"`
	TTLDays   int    `mapstructure:"ttl_days"`
}

// RateLimitConfig holds the per-tenant request rate limit settings.
type RateLimitConfig struct {
	RequestsPerWindow int `mapstructure:"requests_per_window"`
	WindowSeconds     int `mapstructure:"window_seconds"`
}

// ProviderConfig holds the embedding provider settings.
type ProviderConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
	Dimensions   int    `mapstructure:"dimensions"`
	BatchSize    int    `mapstructure:"batch_size"`
}

// LLMConfig holds the language model provider settings.
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// OperatorConfig holds the operator token settings used to guard
// destructive admin endpoints.
type OperatorConfig struct {
	JWTSecret        string `mapstructure:"jwt_secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load reads the YAML file at configPath and unmarshals it into a Config.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
