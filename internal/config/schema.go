package config

// Config holds lexpipe configuration.
// Loaded from config.yaml with LEXPIPE_ environment overrides.
type Config struct {
	Server    ServerCfg    `mapstructure:"server" yaml:"server"`
	Database  DatabaseCfg  `mapstructure:"database" yaml:"database"`
	Storage   StorageCfg   `mapstructure:"storage" yaml:"storage"`
	Parser    ParserCfg    `mapstructure:"parser" yaml:"parser"`
	Extractor ExtractorCfg `mapstructure:"extractor" yaml:"extractor"`
	Pipeline  PipelineCfg  `mapstructure:"pipeline" yaml:"pipeline"`
}

// ServerCfg configures the HTTP API listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DatabaseCfg configures the record store connection.
type DatabaseCfg struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "pgx" or "sqlite"
	DSN    string `mapstructure:"dsn" yaml:"dsn"`       // supports ${ENV_VAR} syntax
}

// StorageCfg configures the S3-compatible object store.
type StorageCfg struct {
	Endpoint          string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey         string `mapstructure:"access_key" yaml:"access_key"` // supports ${ENV_VAR} syntax
	SecretKey         string `mapstructure:"secret_key" yaml:"secret_key"` // supports ${ENV_VAR} syntax
	UseSSL            bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	UploadsBucket     string `mapstructure:"uploads_bucket" yaml:"uploads_bucket"`
	ExtractionsBucket string `mapstructure:"extractions_bucket" yaml:"extractions_bucket"`
}

// ParserCfg bounds accepted documents.
type ParserCfg struct {
	MaxSizeBytes int64 `mapstructure:"max_size_bytes" yaml:"max_size_bytes"`
	MaxPages     int   `mapstructure:"max_pages" yaml:"max_pages"`
}

// ExtractorCfg configures the structured extraction client.
type ExtractorCfg struct {
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`
	Model             string  `mapstructure:"model" yaml:"model"`
	MaxChars          int     `mapstructure:"max_chars" yaml:"max_chars"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	MaxDelaySeconds   int     `mapstructure:"max_delay_seconds" yaml:"max_delay_seconds"` // backoff cap
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RateLimit         int     `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute
}

// PipelineCfg tunes the background worker pool and stage retries.
type PipelineCfg struct {
	Workers               int `mapstructure:"workers" yaml:"workers"`
	QueueSize             int `mapstructure:"queue_size" yaml:"queue_size"`
	ParseAttempts         int `mapstructure:"parse_attempts" yaml:"parse_attempts"`
	ParseTimeoutSeconds   int `mapstructure:"parse_timeout_seconds" yaml:"parse_timeout_seconds"`
	StoreAttempts         int `mapstructure:"store_attempts" yaml:"store_attempts"`
	StoreTimeoutSeconds   int `mapstructure:"store_timeout_seconds" yaml:"store_timeout_seconds"`
	ExtractTimeoutSeconds int `mapstructure:"extract_timeout_seconds" yaml:"extract_timeout_seconds"`
	RetryDelaySeconds     int `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	MaxDelaySeconds       int `mapstructure:"max_delay_seconds" yaml:"max_delay_seconds"` // backoff cap
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseCfg{
			Driver: "pgx",
			DSN:    "${LEXPIPE_DATABASE_URL}",
		},
		Storage: StorageCfg{
			Endpoint:          "localhost:9000",
			AccessKey:         "${MINIO_ACCESS_KEY}",
			SecretKey:         "${MINIO_SECRET_KEY}",
			UseSSL:            false,
			UploadsBucket:     "uploads",
			ExtractionsBucket: "extractions",
		},
		Parser: ParserCfg{
			MaxSizeBytes: 25 * 1024 * 1024,
			MaxPages:     100,
		},
		Extractor: ExtractorCfg{
			APIKey:            "${OPENAI_API_KEY}",
			Model:             "gpt-4o-mini",
			MaxChars:          200000,
			Temperature:       0.1,
			MaxRetries:        3,
			RetryDelaySeconds: 2,
			MaxDelaySeconds:   30,
			TimeoutSeconds:    60,
			RateLimit:         60,
		},
		Pipeline: PipelineCfg{
			Workers:               2,
			QueueSize:             64,
			ParseAttempts:         2,
			ParseTimeoutSeconds:   300,
			StoreAttempts:         3,
			StoreTimeoutSeconds:   60,
			ExtractTimeoutSeconds: 120,
			RetryDelaySeconds:     2,
			MaxDelaySeconds:       30,
		},
	}
}
