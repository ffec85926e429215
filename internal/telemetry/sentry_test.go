package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdsong-go/birdsong/internal/conf"
	"github.com/birdsong-go/birdsong/internal/errors"
)

// mockTransport captures events instead of sending them
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

//nolint:gocritic // hugeParam: interface requirement
func (t *mockTransport) Configure(_ sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool { return true }
func (t *mockTransport) FlushWithContext(context.Context) bool { return true }
func (t *mockTransport) Close() {}

func (t *mockTransport) Events() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func TestInitDisabledIsNoop(t *testing.T) {
	require.NoError(t, Init(&conf.TelemetrySettings{Enabled: false}, "test"))
	assert.False(t, IsEnabled())
	assert.True(t, Flush(time.Second))
}

func TestInitRequiresDSN(t *testing.T) {
	err := Init(&conf.TelemetrySettings{Enabled: true}, "test")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.False(t, IsEnabled())
}

func TestEnhancedErrorsReachSentry(t *testing.T) {
	transport := &mockTransport{}
	require.NoError(t, initWithTransport(&conf.TelemetrySettings{
		Enabled:     true,
		Environment: "test",
		SampleRate:  1.0,
	}, "test", transport))
	t.Cleanup(func() { Flush(time.Second) })
	require.True(t, IsEnabled())

	_ = errors.Newf("lookup failed for https://duckduckgo.com/i.js?q=barn&vqd=4-123").
		Component("imageprovider").
		Category(errors.CategoryImageLookup).
		Build()

	events := transport.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "imageprovider", ev.Tags["component"])
	assert.Equal(t, "image-lookup", ev.Tags["category"])
	assert.NotContains(t, ev.Message, "vqd=4-123")
	assert.Empty(t, ev.ServerName)
}

func TestFlushDetachesReporter(t *testing.T) {
	transport := &mockTransport{}
	require.NoError(t, initWithTransport(&conf.TelemetrySettings{Enabled: true, SampleRate: 1.0}, "test", transport))
	require.True(t, Flush(time.Second))
	assert.False(t, IsEnabled())

	_ = errors.Newf("after flush").Component("classifier").Category(errors.CategoryInference).Build()
	assert.Empty(t, transport.Events())
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.User = sentry.User{ID: "someone", IPAddress: "10.0.0.1"}
	event.ServerName = "myhost"
	event.Contexts["device"] = sentry.Context{"name": "laptop"}
	event.Contexts["application"] = sentry.Context{"name": "birdsong"}
	event.Extra["component"] = "api"
	event.Extra["filename"] = "/home/me/recording.wav"
	event.Tags["hostname"] = "myhost"
	event.Tags["category"] = "audio-decode"

	out := applyPrivacyFilters(event)
	assert.True(t, out.User.IsEmpty())
	assert.Empty(t, out.ServerName)
	assert.NotContains(t, out.Contexts, "device")
	assert.Contains(t, out.Contexts, "application")
	assert.Contains(t, out.Extra, "component")
	assert.NotContains(t, out.Extra, "filename")
	assert.NotContains(t, out.Tags, "hostname")
	assert.Equal(t, "audio-decode", out.Tags["category"])
}
