package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://example.test/resource"

func newMockedClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	cfg.Transport = mt
	client := New(&cfg)
	t.Cleanup(client.Close)
	return client, mt
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil config uses defaults", func(t *testing.T) {
		t.Parallel()
		client := New(nil)
		assert.Equal(t, DefaultTimeout, client.defaultTimeout)
		assert.Equal(t, DefaultUserAgent, client.userAgent)
	})

	t.Run("custom values override defaults", func(t *testing.T) {
		t.Parallel()
		client := New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "TestAgent/1.0"})
		assert.Equal(t, 5*time.Second, client.defaultTimeout)
		assert.Equal(t, "TestAgent/1.0", client.userAgent)
	})
}

func TestGet_ReadsBodyAfterReturn(t *testing.T) {
	t.Parallel()

	client, mt := newMockedClient(t, Config{DefaultTimeout: time.Second})
	mt.RegisterResponder(http.MethodGet, testURL, httpmock.NewStringResponder(http.StatusOK, "success"))

	resp, err := client.Get(t.Context(), testURL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "success", string(body))
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestDo_UserAgent(t *testing.T) {
	t.Parallel()

	client, mt := newMockedClient(t, Config{UserAgent: "CustomAgent/2.0"})
	var received atomic.Value
	mt.RegisterResponder(http.MethodGet, testURL, func(req *http.Request) (*http.Response, error) {
		received.Store(req.Header.Get("User-Agent"))
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	resp, err := client.Get(t.Context(), testURL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "CustomAgent/2.0", received.Load())

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, testURL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "Explicit/1.0")
	resp, err = client.Do(t.Context(), req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "Explicit/1.0", received.Load())
}

func TestDo_AppliesDefaultDeadline(t *testing.T) {
	t.Parallel()

	client, mt := newMockedClient(t, Config{DefaultTimeout: 2 * time.Second})
	var hadDeadline atomic.Bool
	mt.RegisterResponder(http.MethodGet, testURL, func(req *http.Request) (*http.Response, error) {
		_, ok := req.Context().Deadline()
		hadDeadline.Store(ok)
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	resp, err := client.Get(context.Background(), testURL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.True(t, hadDeadline.Load())
}

func TestDo_TransportErrorAndHooks(t *testing.T) {
	t.Parallel()

	client, mt := newMockedClient(t, Config{})
	errRefused := errors.New("connection refused")
	mt.RegisterResponder(http.MethodGet, testURL, httpmock.NewErrorResponder(errRefused))

	var before, after atomic.Int32
	client.SetBeforeRequestHook(func(*http.Request) { before.Add(1) })
	client.SetAfterResponseHook(func(_ *http.Request, _ *http.Response, err error) {
		if err != nil {
			after.Add(1)
		}
	})

	_, err := client.Get(t.Context(), testURL)
	require.ErrorIs(t, err, errRefused)
	assert.Equal(t, int32(1), before.Load())
	assert.Equal(t, int32(1), after.Load())
}

func TestDo_NilRequest(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Do(t.Context(), nil)
	require.Error(t, err)
}

func TestReadLimited(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr error
	}{
		{"under limit", "abc", 10, nil},
		{"exactly limit", "abcde", 5, nil},
		{"over limit", "abcdef", 5, ErrBodyTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := ReadLimited(strings.NewReader(tt.body), tt.limit)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(data))
		})
	}
}
