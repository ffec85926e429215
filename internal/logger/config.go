package logger

// Config represents logging configuration
type Config struct {
	DefaultLevel string            `yaml:"level" mapstructure:"level"`               // default log level for all modules
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`         // "Local", "UTC", or IANA name
	Console      bool              `yaml:"console" mapstructure:"console"`           // human-readable stderr output
	File         FileOutput        `yaml:"file" mapstructure:"file"`                 // JSON file output
	ModuleLevels map[string]string `yaml:"modulelevels" mapstructure:"modulelevels"` // per-module log levels
}

// FileOutput represents file logging configuration.
// File output uses JSON format for machine parsing and is rotated by lumberjack.
type FileOutput struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Path            string `yaml:"path" mapstructure:"path"`
	MaxSize         int    `yaml:"maxsize" mapstructure:"maxsize"`       // MB before rotation
	MaxAge          int    `yaml:"maxage" mapstructure:"maxage"`         // days to keep rotated logs (0 = no limit)
	MaxRotatedFiles int    `yaml:"maxbackups" mapstructure:"maxbackups"` // rotated files to keep (0 = no limit)
	Compress        bool   `yaml:"compress" mapstructure:"compress"`
}

// Default values for logging configuration.
const (
	DefaultLogLevel        = "info"
	DefaultLogPath         = "logs/birdsong.log"
	DefaultMaxSize         = 100
	DefaultMaxAge          = 30
	DefaultMaxRotatedFiles = 10
)

// applyConfigDefaults fills zero values with defaults
func applyConfigDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			cfg.File.Path = DefaultLogPath
		}
		if cfg.File.MaxSize == 0 {
			cfg.File.MaxSize = DefaultMaxSize
		}
	}
}
