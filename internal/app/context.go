package app

import (
	"time"

	"github.com/spf13/viper"

	"github.com/birdsong-go/birdsong/internal/buildinfo"
	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/logger"
	"github.com/birdsong-go/birdsong/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// Context carries build metadata, the viper instance that command flags are
// bound to, and the settings loaded from it.
type Context struct {
	BuildInfo  *buildinfo.Context
	Viper      *viper.Viper
	ConfigFile string
	Settings   *conf.Settings

	logger *logger.CentralLogger
}

// NewContext creates a Context with defaults registered in its viper instance.
func NewContext(bi *buildinfo.Context) *Context {
	return &Context{BuildInfo: bi, Viper: conf.NewViper()}
}

// Initialize loads settings, installs the global logger and starts telemetry.
func (c *Context) Initialize() error {
	settings, err := conf.Load(c.Viper, c.ConfigFile)
	if err != nil {
		return err
	}
	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return err
	}
	logger.SetGlobal(cl)
	c.logger = cl
	c.Settings = settings

	if used := c.Viper.ConfigFileUsed(); used != "" {
		cl.Module("app").Debug("configuration loaded", logger.String("file", used))
	}

	return telemetry.Init(&settings.Telemetry, c.BuildInfo.GetVersion())
}

// Shutdown flushes telemetry and closes log files.
func (c *Context) Shutdown() {
	telemetry.Flush(telemetryFlushTimeout)
	if c.logger != nil {
		if err := c.logger.Close(); err != nil {
			logger.Global().Module("app").Warn("failed to close logger", logger.Error(err))
		}
	}
}
