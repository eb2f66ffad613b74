package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Tracking      TrackingConfig      `yaml:"tracking"`
	Experiment    ExperimentConfig    `yaml:"experiment"`
	Storage       StorageConfig       `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Provider      ProviderConfig      `yaml:"provider"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ChannelCostConfig holds one channel's duration cost model.
type ChannelCostConfig struct {
	BaseSeconds    int `yaml:"base_seconds"`
	PerRecipientMs int `yaml:"per_recipient_ms"`
}

// OrchestrationConfig holds plan-building delays and thresholds. Channel
// costs are keyed by channel name (email, sms, mms, push, whatsapp).
type OrchestrationConfig struct {
	ChannelCosts                map[string]ChannelCostConfig `yaml:"channel_costs"`
	SequentialDelayMinutes      int                          `yaml:"sequential_delay_minutes"`
	OptimalSequentialDelayMins  int                          `yaml:"optimal_sequential_delay_minutes"`
	OptimalParallelDelayMinutes int                          `yaml:"optimal_parallel_delay_minutes"`
	LargeAudienceThreshold      int                          `yaml:"large_audience_threshold"`
	StageSize                   int                          `yaml:"stage_size"`
	StageDelayMinutes           int                          `yaml:"stage_delay_minutes"`
}

// SequentialDelay returns the default inter-channel delay as a duration
func (c OrchestrationConfig) SequentialDelay() time.Duration {
	return time.Duration(c.SequentialDelayMinutes) * time.Minute
}

// OptimalSequentialDelay returns the optimal-strategy sequential delay
func (c OrchestrationConfig) OptimalSequentialDelay() time.Duration {
	return time.Duration(c.OptimalSequentialDelayMins) * time.Minute
}

// OptimalParallelDelay returns the optimal-strategy parallel delay
func (c OrchestrationConfig) OptimalParallelDelay() time.Duration {
	return time.Duration(c.OptimalParallelDelayMinutes) * time.Minute
}

// StageDelay returns the inter-stage delay as a duration
func (c OrchestrationConfig) StageDelay() time.Duration {
	return time.Duration(c.StageDelayMinutes) * time.Minute
}

// TrackingConfig holds performance-aggregation configuration
type TrackingConfig struct {
	CollectionIntervalSeconds int     `yaml:"collection_interval_seconds"`
	HistoryLimit              int     `yaml:"history_limit"`
	TrendWindow               int     `yaml:"trend_window"`
	OverlapFraction           float64 `yaml:"overlap_fraction"`
}

// Interval returns the collection interval as a duration
func (c TrackingConfig) Interval() time.Duration {
	return time.Duration(c.CollectionIntervalSeconds) * time.Second
}

// ExperimentConfig holds A/B testing statistical configuration
type ExperimentConfig struct {
	MinSampleSize         int     `yaml:"min_sample_size"`
	ConfidenceLevel       float64 `yaml:"confidence_level"`
	SignificanceThreshold float64 `yaml:"significance_threshold"`
	BaselineRate          float64 `yaml:"baseline_rate"`
	ExpectedImprovement   float64 `yaml:"expected_improvement"`
	Power                 float64 `yaml:"power"`
	MinDurationHours      int     `yaml:"min_duration_hours"`
}

// MinDuration returns the minimum experiment runtime as a duration
func (c ExperimentConfig) MinDuration() time.Duration {
	return time.Duration(c.MinDurationHours) * time.Hour
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	// Type is "memory", "redis", or "postgres"
	Type string `yaml:"type"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// ProviderConfig holds delivery provider settings. Only the stub provider is
// bundled; RampMinutes controls how fast its simulated sends complete.
type ProviderConfig struct {
	RampMinutes int `yaml:"ramp_minutes"`
}

// Ramp returns the stub provider's delivery ramp as a duration
func (c ProviderConfig) Ramp() time.Duration {
	return time.Duration(c.RampMinutes) * time.Minute
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Orchestration.SequentialDelayMinutes == 0 {
		cfg.Orchestration.SequentialDelayMinutes = 5
	}
	if cfg.Orchestration.OptimalSequentialDelayMins == 0 {
		cfg.Orchestration.OptimalSequentialDelayMins = 15
	}
	if cfg.Orchestration.OptimalParallelDelayMinutes == 0 {
		cfg.Orchestration.OptimalParallelDelayMinutes = 1
	}
	if cfg.Orchestration.LargeAudienceThreshold == 0 {
		cfg.Orchestration.LargeAudienceThreshold = 10000
	}
	if cfg.Orchestration.StageSize == 0 {
		cfg.Orchestration.StageSize = 5000
	}
	if cfg.Orchestration.StageDelayMinutes == 0 {
		cfg.Orchestration.StageDelayMinutes = 10
	}
	if cfg.Tracking.CollectionIntervalSeconds == 0 {
		cfg.Tracking.CollectionIntervalSeconds = 300
	}
	if cfg.Tracking.HistoryLimit == 0 {
		cfg.Tracking.HistoryLimit = 100
	}
	if cfg.Tracking.TrendWindow == 0 {
		cfg.Tracking.TrendWindow = 10
	}
	if cfg.Tracking.OverlapFraction == 0 {
		cfg.Tracking.OverlapFraction = 0.15
	}
	if cfg.Experiment.MinSampleSize == 0 {
		cfg.Experiment.MinSampleSize = 100
	}
	if cfg.Experiment.ConfidenceLevel == 0 {
		cfg.Experiment.ConfidenceLevel = 0.95
	}
	if cfg.Experiment.SignificanceThreshold == 0 {
		cfg.Experiment.SignificanceThreshold = 0.05
	}
	if cfg.Experiment.BaselineRate == 0 {
		cfg.Experiment.BaselineRate = 0.10
	}
	if cfg.Experiment.ExpectedImprovement == 0 {
		cfg.Experiment.ExpectedImprovement = 0.02
	}
	if cfg.Experiment.Power == 0 {
		cfg.Experiment.Power = 0.80
	}
	if cfg.Experiment.MinDurationHours == 0 {
		cfg.Experiment.MinDurationHours = 48
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Provider.RampMinutes == 0 {
		cfg.Provider.RampMinutes = 10
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		// No config file is fine; run on defaults plus env overrides.
		cfg = Default()
	} else if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	// Database override (deployment environments inject the real URL)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Postgres.URL = dbURL
	}

	return cfg, nil
}
