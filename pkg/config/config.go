// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Source, Indexing, Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Source   SourceConfig   `yaml:"source"`
	Indexing IndexingConfig `yaml:"indexing"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the document
// source store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and search-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for analytics events.
// Leaving Brokers empty disables event publishing.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// Enabled reports whether analytics publishing is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// SourceConfig lists the relational tables the indexer reads documents from.
type SourceConfig struct {
	Tables []TableSchema `yaml:"tables"`
}

// TableNames returns the configured table names in declaration order.
func (s SourceConfig) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Table returns the schema for the named table, or false if not configured.
func (s SourceConfig) Table(name string) (TableSchema, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableSchema{}, false
}

// TableSchema maps one source table's columns onto the document model. Every
// table carries a binary content column plus the metadata columns that make
// its rows filterable.
type TableSchema struct {
	Name            string   `yaml:"name"`
	IDColumn        string   `yaml:"idColumn"`
	NameColumn      string   `yaml:"nameColumn"`
	MimeColumn      string   `yaml:"mimeColumn"`
	TitleColumn     string   `yaml:"titleColumn"`
	ContentColumn   string   `yaml:"contentColumn"`
	UpdatedColumn   string   `yaml:"updatedColumn"`
	FormNoColumn    string   `yaml:"formNoColumn"`
	ActiveColumn    string   `yaml:"activeColumn"`
	PathColumns     []string `yaml:"pathColumns"`
	MetadataColumns []string `yaml:"metadataColumns"`
}

// DefaultBatchSize is the number of index records flushed per batch when no
// override is configured.
const DefaultBatchSize = 50

// IndexingConfig controls the ingestion pipeline: batch sizing, worker
// parallelism, and text extraction bounds.
type IndexingConfig struct {
	DataDir       string        `yaml:"dataDir"`
	IndexName     string        `yaml:"indexName"`
	BatchSize     int           `yaml:"batchSize"`
	Workers       int           `yaml:"workers"`
	MaxTextLength int           `yaml:"maxTextLength"`
	FetchTimeout  time.Duration `yaml:"fetchTimeout"`
}

// SearchConfig controls query result limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxResults   int `yaml:"maxResults"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Source.Tables) == 0 {
		return fmt.Errorf("config: at least one source table must be configured")
	}
	seen := make(map[string]struct{}, len(c.Source.Tables))
	for _, t := range c.Source.Tables {
		if t.Name == "" || t.IDColumn == "" || t.NameColumn == "" || t.ContentColumn == "" {
			return fmt.Errorf("config: table %q missing id/name/content column mapping", t.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("config: duplicate source table %q", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development. The default source tables mirror the document-management
// schema the service was built for.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "docsearch",
			User:            "docsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Topics: KafkaTopics{
				AnalyticsEvents: "docsearch.analytics-events",
			},
		},
		Source: SourceConfig{
			Tables: []TableSchema{
				{
					Name:            "FORMS_MASTER",
					IDColumn:        "forms_master_id",
					NameColumn:      "docfile_name",
					MimeColumn:      "docfile_type",
					TitleColumn:     "title",
					ContentColumn:   "docfile_content",
					UpdatedColumn:   "update_date",
					FormNoColumn:    "form_no",
					ActiveColumn:    "is_active",
					PathColumns:     []string{"form_type", "department_id"},
					MetadataColumns: []string{"form_type", "department_id", "effective_date", "revision_no", "status"},
				},
				{
					Name:            "VESSEL_CERTIFICATES",
					IDColumn:        "vessel_certificates_id",
					NameColumn:      "certificate_name",
					MimeColumn:      "certificate_type",
					TitleColumn:     "certificate_title",
					ContentColumn:   "certificate_content",
					UpdatedColumn:   "update_date",
					FormNoColumn:    "certificate_no",
					ActiveColumn:    "is_active",
					PathColumns:     []string{"vessel_id"},
					MetadataColumns: []string{"vessel_id", "certificate_no", "issue_date", "expiry_date", "issuing_authority", "status"},
				},
			},
		},
		Indexing: IndexingConfig{
			DataDir:       "./data",
			IndexName:     "documents",
			BatchSize:     DefaultBatchSize,
			Workers:       4,
			MaxTextLength: 50000,
			FetchTimeout:  30 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxResults:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// applyEnvOverrides reads DS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("DS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("DS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("DS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("DS_INDEX_DATA_DIR"); v != "" {
		cfg.Indexing.DataDir = v
	}
	if v := os.Getenv("DS_INDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Indexing.BatchSize = n
		}
	}
	if v := os.Getenv("DS_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Indexing.Workers = n
		}
	}
	if v := os.Getenv("DS_MAX_TEXT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Indexing.MaxTextLength = n
		}
	}
	if v := os.Getenv("DS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
