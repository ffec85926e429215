package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := Load(NewViper(), writeConfig(t, "{}\n"))
	require.NoError(t, err)
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults are valid", func(*Settings) {}, ""},
		{"unknown backend", func(s *Settings) { s.Classifier.Backend = "torch" }, "classifier.backend"},
		{"empty model path", func(s *Settings) { s.Classifier.ModelPath = "" }, "classifier.modelpath"},
		{"onnx without tensor names", func(s *Settings) {
			s.Classifier.Backend = "onnx"
			s.Classifier.ONNX.InputName = ""
		}, "classifier.onnx"},
		{"nfft not power of two", func(s *Settings) { s.Audio.NFFT = 2000 }, "audio.nfft"},
		{"hop larger than nfft", func(s *Settings) { s.Audio.HopLength = 4096 }, "audio.hoplength"},
		{"negative extraction limit", func(s *Settings) { s.Audio.MaxConcurrent = -1 }, "audio.maxconcurrent"},
		{"too many mel bands", func(s *Settings) { s.Audio.MelBands = 2000 }, "audio.melbands"},
		{"unknown provider", func(s *Settings) { s.ImageProvider.Provider = "bing" }, "imageprovider.provider"},
		{"zero timeout", func(s *Settings) { s.ImageProvider.Timeout = 0 }, "imageprovider.timeout"},
		{"bad provider url", func(s *Settings) { s.ImageProvider.DuckDuckGo.BaseURL = "ftp://x" }, "duckduckgo.baseurl"},
		{"zero image pixel cap", func(s *Settings) { s.ImageFetch.MaxPixels = 0 }, "imagefetch.maxpixels"},
		{"bad upload size", func(s *Settings) { s.WebServer.MaxUploadSize = "lots" }, "webserver.maxuploadsize"},
		{"telemetry without dsn", func(s *Settings) { s.Telemetry.Enabled = true }, "telemetry.dsn"},
		{"unknown log level", func(s *Settings) { s.Logging.DefaultLevel = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings(t)
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
