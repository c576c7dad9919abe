package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	History HistoryConfig `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// EngineConfig contains download orchestration configuration
type EngineConfig struct {
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RetryCount       int           `mapstructure:"retry_count"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	MergeTimeout     time.Duration `mapstructure:"merge_timeout"`
	MaxArtifactSize  int64         `mapstructure:"max_artifact_size"`
	StatusRetention  time.Duration `mapstructure:"status_retention"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	AllowedQualities []string      `mapstructure:"allowed_qualities"`
	TempDir          string        `mapstructure:"temp_dir"`
	OutputDir        string        `mapstructure:"output_dir"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	FFmpegBinary     string        `mapstructure:"ffmpeg_binary"`
}

// HistoryConfig contains terminal-job archive configuration
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Engine: EngineConfig{
			MaxConcurrent:    3,
			RequestTimeout:   30 * time.Second,
			RetryCount:       3,
			RetryDelay:       2 * time.Second,
			MergeTimeout:     5 * time.Minute,
			MaxArtifactSize:  500 * 1024 * 1024,
			StatusRetention:  30 * time.Minute,
			FailureThreshold: 2,
			AllowedQualities: []string{"720p", "1080p", "4k"},
			TempDir:          "$HOME/.ytgrab/tmp",
			OutputDir:        "$HOME/.ytgrab/downloads",
			SweepInterval:    5 * time.Minute,
			FFmpegBinary:     "ffmpeg",
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "$HOME/.ytgrab/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}

// ValidQuality checks a requested quality against the allow-list and the
// best/worst sentinels
func (c *EngineConfig) ValidQuality(quality string) bool {
	if quality == QualityBest || quality == QualityWorst {
		return true
	}
	for _, q := range c.AllowedQualities {
		if q == quality {
			return true
		}
	}
	return false
}
