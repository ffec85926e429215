// Package telemetry wires opt-in Sentry error reporting. Enhanced errors built
// in internal/errors are forwarded once Init has succeeded.
package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
)

var sentryInitialized atomic.Bool

// allowedExtras are the only event extras kept by the privacy filter
var allowedExtras = map[string]bool{
	"error_type": true,
	"component":  true,
	"category":   true,
}

// Init starts Sentry when telemetry is enabled. A disabled configuration is not an error.
func Init(settings *conf.TelemetrySettings, version string) error {
	return initWithTransport(settings, version, nil)
}

func initWithTransport(settings *conf.TelemetrySettings, version string, transport sentry.Transport) error {
	log := logger.Global().Module("telemetry")

	if !settings.Enabled {
		log.Debug("telemetry disabled")
		return nil
	}
	if settings.DSN == "" && transport == nil {
		return errors.Newf("telemetry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Transport:        transport,
		SampleRate:       settings.SampleRate,
		AttachStacktrace: false,
		Environment:      settings.Environment,
		ServerName:       "", // hostname is not sent
		Release:          fmt.Sprintf("birdsong@%s", version),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentryInitialized.Store(true)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("telemetry enabled",
		logger.String("environment", settings.Environment),
		logger.Float64("sample_rate", settings.SampleRate))
	return nil
}

// IsEnabled reports whether Sentry was initialised.
func IsEnabled() bool { return sentryInitialized.Load() }

// Flush waits for queued events and detaches the error reporter.
func Flush(timeout time.Duration) bool {
	if !sentryInitialized.Load() {
		return true
	}
	errors.SetTelemetryReporter(nil)
	sentryInitialized.Store(false)
	return sentry.Flush(timeout)
}

// applyPrivacyFilters strips user, host and device data from an event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if !allowedExtras[k] {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}
