package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the financial analysis service
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Elasticsearch ElasticsearchConfig
	Kafka         KafkaConfig
	S3            S3Config
	Auth          AuthConfig
	Logging       LoggingConfig
	Audit         AuditConfig
	Analysis      AnalysisConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// ElasticsearchConfig holds Elasticsearch configuration for alert search
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// KafkaConfig holds Kafka configuration for document-extraction ingestion
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	ConsumerGroup    string   `mapstructure:"consumer_group"`
	ExtractionTopic  string   `mapstructure:"extraction_topic"`
	TransactionTopic string   `mapstructure:"transaction_topic"`
}

// S3Config holds AWS S3 configuration for analysis-report archival
type S3Config struct {
	Region        string `mapstructure:"region"`
	ReportsBucket string `mapstructure:"reports_bucket"`
	Endpoint      string `mapstructure:"endpoint"` // For local testing with MinIO
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTPublicKeyPath string `mapstructure:"jwt_public_key_path"`
	JWTIssuer        string `mapstructure:"jwt_issuer"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	OutputPath    string `mapstructure:"output_path"`
	EnablePIIMask bool   `mapstructure:"enable_pii_mask"`
}

// AuditConfig holds audit attribution settings
type AuditConfig struct {
	HMACSecret    string `mapstructure:"hmac_secret"`
	ServiceSource string `mapstructure:"service_source"`
}

// AnalysisConfig holds the risk rule evaluator's tunables. Thresholds and
// per-rule scores are deployment configuration, not contractual constants.
type AnalysisConfig struct {
	HighValueThreshold       float64       `mapstructure:"high_value_threshold"`
	SuspiciousScoreThreshold float64       `mapstructure:"suspicious_score_threshold"`
	HighValueScore           float64       `mapstructure:"high_value_score"`
	StructuringWindow        time.Duration `mapstructure:"structuring_window"`
	StructuringScore         float64       `mapstructure:"structuring_score"`
	RapidSuccessionCount     int           `mapstructure:"rapid_succession_count"`
	RapidSuccessionWindow    time.Duration `mapstructure:"rapid_succession_window"`
	RapidSuccessionScore     float64       `mapstructure:"rapid_succession_score"`
	CounterpartySigmaBound   float64       `mapstructure:"counterparty_sigma_bound"`
	CounterpartyMinSamples   int           `mapstructure:"counterparty_min_samples"`
	CounterpartyScore        float64       `mapstructure:"counterparty_score"`
	RoundTripWindow          time.Duration `mapstructure:"round_trip_window"`
	RoundTripTolerance       float64       `mapstructure:"round_trip_tolerance"`
	RoundTripScore           float64       `mapstructure:"round_trip_score"`
	TopCounterparties        int           `mapstructure:"top_counterparties"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("FINANCE")
	v.AutomaticEnv()

	// Read config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "case_finance_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	// Elasticsearch
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "elastic")
	v.SetDefault("elasticsearch.password", "changeme")
	v.SetDefault("elasticsearch.index", "financial-alerts")

	// Kafka
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "financial-analysis-service")
	v.SetDefault("kafka.extraction_topic", "casemgmt.documents.extracted-transactions")
	v.SetDefault("kafka.transaction_topic", "casemgmt.finance.transactions")

	// S3
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.reports_bucket", "casemgmt-analysis-reports")
	v.SetDefault("s3.use_ssl", true)

	// Auth
	v.SetDefault("auth.jwt_public_key_path", "./keys/jwt_public.pem")
	v.SetDefault("auth.jwt_issuer", "casemgmt-auth-service")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
	v.SetDefault("logging.enable_pii_mask", true)

	// Audit
	v.SetDefault("audit.service_source", "financial-analysis-service")

	// Analysis
	v.SetDefault("analysis.high_value_threshold", 10000.0)
	v.SetDefault("analysis.suspicious_score_threshold", 0.7)
	v.SetDefault("analysis.high_value_score", 0.6)
	v.SetDefault("analysis.structuring_window", "24h")
	v.SetDefault("analysis.structuring_score", 0.8)
	v.SetDefault("analysis.rapid_succession_count", 5)
	v.SetDefault("analysis.rapid_succession_window", "1h")
	v.SetDefault("analysis.rapid_succession_score", 0.5)
	v.SetDefault("analysis.counterparty_sigma_bound", 3.0)
	v.SetDefault("analysis.counterparty_min_samples", 5)
	v.SetDefault("analysis.counterparty_score", 0.7)
	v.SetDefault("analysis.round_trip_window", "72h")
	v.SetDefault("analysis.round_trip_tolerance", 0.1)
	v.SetDefault("analysis.round_trip_score", 0.9)
	v.SetDefault("analysis.top_counterparties", 5)
}

// DefaultAnalysis returns the stock rule tunables, used when a caller
// constructs the evaluator outside of Load (tests, tooling).
func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		HighValueThreshold:       10000.0,
		SuspiciousScoreThreshold: 0.7,
		HighValueScore:           0.6,
		StructuringWindow:        24 * time.Hour,
		StructuringScore:         0.8,
		RapidSuccessionCount:     5,
		RapidSuccessionWindow:    time.Hour,
		RapidSuccessionScore:     0.5,
		CounterpartySigmaBound:   3.0,
		CounterpartyMinSamples:   5,
		CounterpartyScore:        0.7,
		RoundTripWindow:          72 * time.Hour,
		RoundTripTolerance:       0.1,
		RoundTripScore:           0.9,
		TopCounterparties:        5,
	}
}
