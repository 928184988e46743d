package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Download  DownloadConfig  `mapstructure:"download"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ToolsConfig locates the external extraction and conversion binaries.
type ToolsConfig struct {
	YTDLPBinary string `mapstructure:"ytdlp_binary"`
	// FFmpegDir, when set, is prepended to the child's PATH so yt-dlp can
	// find its conversion companion without the caller knowing where it is.
	FFmpegDir string `mapstructure:"ffmpeg_dir"`
}

// DownloadConfig contains download and retry configuration.
type DownloadConfig struct {
	Dir             string          `mapstructure:"dir"`
	OutputTemplate  string          `mapstructure:"output_template"`
	RetryLimit      int             `mapstructure:"retry_limit"`
	Backoff         []time.Duration `mapstructure:"backoff"`
	MetadataTimeout time.Duration   `mapstructure:"metadata_timeout"`
	PrefetchDelay   time.Duration   `mapstructure:"prefetch_delay"`
}

// SchedulerConfig holds the per-class admission ceilings.
type SchedulerConfig struct {
	DownloadLimit int `mapstructure:"download_limit"`
	InfoLimit     int `mapstructure:"info_limit"`
	PlaylistLimit int `mapstructure:"playlist_limit"`
}

// SnapshotConfig configures the task snapshot store.
type SnapshotConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// ClassLimits returns the ceilings keyed by concurrency class.
func (c SchedulerConfig) ClassLimits() map[ConcurrencyClass]int {
	return map[ConcurrencyClass]int{
		ClassDownload: c.DownloadLimit,
		ClassInfo:     c.InfoLimit,
		ClassPlaylist: c.PlaylistLimit,
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Tools: ToolsConfig{
			YTDLPBinary: "yt-dlp",
			FFmpegDir:   "",
		},
		Download: DownloadConfig{
			Dir:             "$HOME/Downloads/vidfetch",
			OutputTemplate:  "%(title)s.%(ext)s",
			RetryLimit:      3,
			Backoff:         []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second},
			MetadataTimeout: 60 * time.Second,
			PrefetchDelay:   400 * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			DownloadLimit: 3,
			InfoLimit:     8,
			PlaylistLimit: 2,
		},
		Snapshot: SnapshotConfig{
			Enabled:      true,
			DatabasePath: "$HOME/Downloads/vidfetch/.vidfetch/tasks.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
