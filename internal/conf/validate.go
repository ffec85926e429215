// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/labstack/gommon/bytes"
)

// Supported option values
var (
	validBackends  = []string{"tflite", "onnx"}
	validProviders = []string{"duckduckgo", "wikimedia", "none"}
	validLogLevels = []string{"trace", "debug", "info", "warn", "error"}
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateLoggingSettings,
		validateClassifierSettings,
		validateAudioSettings,
		validateImageProviderSettings,
		validateImageFetchSettings,
		validateWebServerSettings,
		validateTelemetrySettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(s *Settings) error {
	level := strings.ToLower(s.Logging.DefaultLevel)
	if level != "" && !slices.Contains(validLogLevels, level) {
		return fmt.Errorf("logging.level %q must be one of %v", s.Logging.DefaultLevel, validLogLevels)
	}
	for module, lvl := range s.Logging.ModuleLevels {
		if !slices.Contains(validLogLevels, strings.ToLower(lvl)) {
			return fmt.Errorf("logging.modulelevels.%s %q must be one of %v", module, lvl, validLogLevels)
		}
	}
	if s.Logging.File.Enabled && s.Logging.File.Path == "" {
		return fmt.Errorf("logging.file.path is required when file logging is enabled")
	}
	return nil
}

func validateClassifierSettings(s *Settings) error {
	c := &s.Classifier
	var errs []string

	if !slices.Contains(validBackends, c.Backend) {
		errs = append(errs, fmt.Sprintf("classifier.backend %q must be one of %v", c.Backend, validBackends))
	}
	if c.ModelPath == "" {
		errs = append(errs, "classifier.modelpath must be set")
	}
	if c.Threads < 0 {
		errs = append(errs, "classifier.threads must be >= 0")
	}
	if c.Candidates < 1 {
		errs = append(errs, "classifier.candidates must be >= 1")
	}
	if c.Backend == "onnx" && (c.ONNX.InputName == "" || c.ONNX.OutputName == "") {
		errs = append(errs, "classifier.onnx.inputname and outputname are required for the onnx backend")
	}

	if len(errs) > 0 {
		return fmt.Errorf("classifier settings errors: %v", errs)
	}
	return nil
}

func validateAudioSettings(s *Settings) error {
	a := &s.Audio
	var errs []string

	if a.NFFT <= 0 || a.NFFT&(a.NFFT-1) != 0 {
		errs = append(errs, fmt.Sprintf("audio.nfft %d must be a positive power of two", a.NFFT))
	}
	if a.HopLength <= 0 || a.HopLength > a.NFFT {
		errs = append(errs, fmt.Sprintf("audio.hoplength %d must be in 1..nfft", a.HopLength))
	}
	if a.MelBands <= 0 || a.MelBands > a.NFFT/2+1 {
		errs = append(errs, fmt.Sprintf("audio.melbands %d must be in 1..nfft/2+1", a.MelBands))
	}
	if a.Frames <= 0 {
		errs = append(errs, "audio.frames must be > 0")
	}
	if a.TopDB < 0 {
		errs = append(errs, "audio.topdb must be >= 0")
	}
	if a.MaxConcurrent < 0 {
		errs = append(errs, "audio.maxconcurrent must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("audio settings errors: %v", errs)
	}
	return nil
}

func validateImageProviderSettings(s *Settings) error {
	p := &s.ImageProvider
	var errs []string

	if !slices.Contains(validProviders, p.Provider) {
		errs = append(errs, fmt.Sprintf("imageprovider.provider %q must be one of %v", p.Provider, validProviders))
	}
	if p.Timeout <= 0 {
		errs = append(errs, "imageprovider.timeout must be > 0")
	}
	if p.RateLimit <= 0 {
		errs = append(errs, "imageprovider.ratelimit must be > 0")
	}
	if p.Burst < 1 {
		errs = append(errs, "imageprovider.burst must be >= 1")
	}
	switch p.Provider {
	case "duckduckgo":
		if err := validateBaseURL(p.DuckDuckGo.BaseURL); err != nil {
			errs = append(errs, "imageprovider.duckduckgo.baseurl: "+err.Error())
		}
	case "wikimedia":
		if err := validateBaseURL(p.Wikimedia.BaseURL); err != nil {
			errs = append(errs, "imageprovider.wikimedia.baseurl: "+err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("image provider settings errors: %v", errs)
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is empty")
	}
	return nil
}

func validateImageFetchSettings(s *Settings) error {
	if s.ImageFetch.Timeout <= 0 {
		return fmt.Errorf("imagefetch.timeout must be > 0")
	}
	if s.ImageFetch.MaxBytes <= 0 {
		return fmt.Errorf("imagefetch.maxbytes must be > 0")
	}
	if s.ImageFetch.MaxPixels <= 0 {
		return fmt.Errorf("imagefetch.maxpixels must be > 0")
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if s.WebServer.Listen == "" {
		return fmt.Errorf("webserver.listen must be set")
	}
	// echo's BodyLimit middleware panics on unparsable limits, catch them here
	if _, err := bytes.Parse(s.WebServer.MaxUploadSize); err != nil {
		return fmt.Errorf("webserver.maxuploadsize %q: %w", s.WebServer.MaxUploadSize, err)
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		return fmt.Errorf("telemetry.dsn is required when telemetry is enabled")
	}
	if s.Telemetry.SampleRate < 0 || s.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.samplerate must be in 0..1")
	}
	return nil
}
