// config.go: settings struct for birdsong and the functions that load it through viper.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix is the prefix for environment overrides, e.g. BIRDSONG_CLASSIFIER_MODELPATH.
const EnvPrefix = "BIRDSONG"

// ClassifierSettings selects and configures the inference backend.
type ClassifierSettings struct {
	Backend    string       `mapstructure:"backend" yaml:"backend"`       // "tflite" or "onnx"
	ModelPath  string       `mapstructure:"modelpath" yaml:"modelpath"`   // path to .tflite or .onnx model
	LabelPath  string       `mapstructure:"labelpath" yaml:"labelpath"`   // optional CSV label file, embedded list when empty
	Threads    int          `mapstructure:"threads" yaml:"threads"`       // 0 = physical cores
	Candidates int          `mapstructure:"candidates" yaml:"candidates"` // number of ranked candidates to show
	ONNX       ONNXSettings `mapstructure:"onnx" yaml:"onnx"`
}

// ONNXSettings holds onnxruntime specific settings.
type ONNXSettings struct {
	LibraryPath string `mapstructure:"librarypath" yaml:"librarypath"` // onnxruntime shared library, system default when empty
	InputName   string `mapstructure:"inputname" yaml:"inputname"`
	OutputName  string `mapstructure:"outputname" yaml:"outputname"`
}

// AudioSettings configures decoding and the mel spectrogram.
type AudioSettings struct {
	FfmpegPath    string  `mapstructure:"ffmpegpath" yaml:"ffmpegpath"` // ffmpeg binary, looked up on PATH when empty
	NFFT          int     `mapstructure:"nfft" yaml:"nfft"`
	HopLength     int     `mapstructure:"hoplength" yaml:"hoplength"`
	MelBands      int     `mapstructure:"melbands" yaml:"melbands"`
	Frames        int     `mapstructure:"frames" yaml:"frames"`
	TopDB         float64 `mapstructure:"topdb" yaml:"topdb"`
	MaxConcurrent int     `mapstructure:"maxconcurrent" yaml:"maxconcurrent"` // uploads decoded at once, 0 = unlimited
}

// ImageProviderSettings configures species image search.
type ImageProviderSettings struct {
	Provider   string        `mapstructure:"provider" yaml:"provider"` // "duckduckgo", "wikimedia" or "none"
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit  float64       `mapstructure:"ratelimit" yaml:"ratelimit"` // requests per second
	Burst      int           `mapstructure:"burst" yaml:"burst"`
	UserAgent  string        `mapstructure:"useragent" yaml:"useragent"`
	DuckDuckGo struct {
		BaseURL string `mapstructure:"baseurl" yaml:"baseurl"`
	} `mapstructure:"duckduckgo" yaml:"duckduckgo"`
	Wikimedia struct {
		BaseURL string `mapstructure:"baseurl" yaml:"baseurl"`
	} `mapstructure:"wikimedia" yaml:"wikimedia"`
}

// ImageFetchSettings limits the download of the located image.
type ImageFetchSettings struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxBytes  int64         `mapstructure:"maxbytes" yaml:"maxbytes"`
	MaxPixels int           `mapstructure:"maxpixels" yaml:"maxpixels"` // width × height cap checked before decoding
}

// WebServerSettings contains settings for the web server.
type WebServerSettings struct {
	Listen        string `mapstructure:"listen" yaml:"listen"`               // address to listen on, e.g. ":8080"
	MaxUploadSize string `mapstructure:"maxuploadsize" yaml:"maxuploadsize"` // echo body limit, e.g. "20M"
	Debug         bool   `mapstructure:"debug" yaml:"debug"`
}

// TelemetrySettings controls Sentry error reporting.
type TelemetrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"samplerate" yaml:"samplerate"`
}

// Settings contains all configuration options for birdsong.
type Settings struct {
	Debug         bool                  `mapstructure:"debug" yaml:"debug"`
	Logging       logger.Config         `mapstructure:"logging" yaml:"logging"`
	Classifier    ClassifierSettings    `mapstructure:"classifier" yaml:"classifier"`
	Audio         AudioSettings         `mapstructure:"audio" yaml:"audio"`
	ImageProvider ImageProviderSettings `mapstructure:"imageprovider" yaml:"imageprovider"`
	ImageFetch    ImageFetchSettings    `mapstructure:"imagefetch" yaml:"imagefetch"`
	WebServer     WebServerSettings     `mapstructure:"webserver" yaml:"webserver"`
	Telemetry     TelemetrySettings     `mapstructure:"telemetry" yaml:"telemetry"`
}

// NewViper returns a viper instance with defaults, config search paths and
// environment overrides registered. Flags may be bound to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaultConfig(v)
	return v
}

// Load reads the configuration file (configFile when set, otherwise the
// default search paths), unmarshals it over the defaults and validates it.
// A missing config file is not an error; defaults apply.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(fmt.Errorf("error reading config file: %w", err)).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				FileContext(configFile, 0).
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error validating settings: %w", err)).
			Component("configuration").
			Category(errors.CategoryValidation).
			Build()
	}

	return settings, nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "birdsong"))
	}
	return append(paths, "/etc/birdsong")
}

// DefaultConfigYAML returns the embedded, commented default configuration.
func DefaultConfigYAML() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the embedded default configuration to path,
// refusing to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	data, err := DefaultConfigYAML()
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing config file: %w", err)
	}
	return f.Close()
}

// ToYAML renders the effective settings.
func (s *Settings) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}
