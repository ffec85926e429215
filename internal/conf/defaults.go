// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", "logs/birdsong.log")
	v.SetDefault("logging.file.maxsize", 100)
	v.SetDefault("logging.file.maxbackups", 10)
	v.SetDefault("logging.file.maxage", 30)
	v.SetDefault("logging.file.compress", false)
	v.SetDefault("logging.modulelevels", map[string]string{})

	v.SetDefault("classifier.backend", "tflite")
	v.SetDefault("classifier.modelpath", "model/birdsong.tflite")
	v.SetDefault("classifier.labelpath", "")
	v.SetDefault("classifier.threads", 0)
	v.SetDefault("classifier.candidates", 3)
	v.SetDefault("classifier.onnx.librarypath", "")
	v.SetDefault("classifier.onnx.inputname", "input")
	v.SetDefault("classifier.onnx.outputname", "output")

	v.SetDefault("audio.ffmpegpath", "")
	v.SetDefault("audio.nfft", 2048)
	v.SetDefault("audio.hoplength", 512)
	v.SetDefault("audio.melbands", 128)
	v.SetDefault("audio.frames", 128)
	v.SetDefault("audio.topdb", 80.0)
	v.SetDefault("audio.maxconcurrent", 4)

	v.SetDefault("imageprovider.provider", "duckduckgo")
	v.SetDefault("imageprovider.timeout", 15*time.Second)
	v.SetDefault("imageprovider.ratelimit", 1.0)
	v.SetDefault("imageprovider.burst", 2)
	v.SetDefault("imageprovider.useragent", "")
	v.SetDefault("imageprovider.duckduckgo.baseurl", "https://duckduckgo.com")
	v.SetDefault("imageprovider.wikimedia.baseurl", "https://en.wikipedia.org/api/rest_v1")

	v.SetDefault("imagefetch.timeout", 15*time.Second)
	v.SetDefault("imagefetch.maxbytes", 10*1024*1024)
	v.SetDefault("imagefetch.maxpixels", 40_000_000)

	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.maxuploadsize", "25M")
	v.SetDefault("webserver.debug", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")
	v.SetDefault("telemetry.samplerate", 1.0)
}
