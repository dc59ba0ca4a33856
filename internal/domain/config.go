package domain

import "time"

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Download DownloadConfig `mapstructure:"download"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ExtractConfig contains extraction tool settings.
type ExtractConfig struct {
	YTDLPBinary     string        `mapstructure:"ytdlp_binary"`
	GalleryBinary   string        `mapstructure:"gallery_binary"`
	StrategyTimeout time.Duration `mapstructure:"strategy_timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

// DownloadConfig contains download and streaming settings.
type DownloadConfig struct {
	OutputDir            string        `mapstructure:"output_dir"`
	LogsDir              string        `mapstructure:"logs_dir"`
	MaxConcurrentStreams int           `mapstructure:"max_concurrent_streams"`
	JanitorInterval      time.Duration `mapstructure:"janitor_interval"`
	RetainTerminal       time.Duration `mapstructure:"retain_terminal"`
}

// FallbackConfig contains HTML fallback scraper settings.
type FallbackConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
}

// DatabaseConfig contains persistence settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Extract: ExtractConfig{
			YTDLPBinary:     "yt-dlp",
			GalleryBinary:   "gallery-dl",
			StrategyTimeout: 120 * time.Second,
			CacheTTL:        5 * time.Minute,
		},
		Download: DownloadConfig{
			OutputDir:            "$HOME/Downloads/mediagrab",
			LogsDir:              "$HOME/Downloads/mediagrab/logs",
			MaxConcurrentStreams: 5,
			JanitorInterval:      time.Minute,
			RetainTerminal:       30 * time.Minute,
		},
		Fallback: FallbackConfig{
			FetchTimeout: 15 * time.Second,
			MaxRedirects: 5,
		},
		Database: DatabaseConfig{
			Path: "$HOME/Downloads/mediagrab/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
