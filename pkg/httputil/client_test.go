package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/nsefeed/pkg/apperrors"
	"github.com/wonny/nsefeed/pkg/config"
	"github.com/wonny/nsefeed/pkg/logger"
)

// sleepRecorder records requested delays without waiting
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

type siteStub struct {
	server    *httptest.Server
	warmups   atomic.Int32
	hits      atomic.Int32
	failFirst int32
	rootCode  atomic.Int32 // warm-up status, 200 when zero
	mu        sync.Mutex
	sequence  []string
	referers  []string
	agents    []string
}

func newSiteStub(t *testing.T, failFirst int32) *siteStub {
	s := &siteStub{failFirst: failFirst}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.sequence = append(s.sequence, r.URL.Path)
		s.mu.Unlock()

		if r.URL.Path == "/" {
			s.warmups.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "abc"})
			code := int(s.rootCode.Load())
			if code == 0 {
				code = http.StatusOK
			}
			w.WriteHeader(code)
			_, _ = w.Write([]byte("<html>access denied</html>"))
			return
		}

		n := s.hits.Add(1)
		s.mu.Lock()
		s.referers = append(s.referers, r.Header.Get("Referer"))
		s.agents = append(s.agents, r.Header.Get("User-Agent"))
		s.mu.Unlock()

		if n <= s.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"marketState":[]}`))
	}))
	t.Cleanup(s.server.Close)
	return s
}

func testClient(site *siteStub, diagnosticURL string, rec *sleepRecorder) *Client {
	cfg := &config.Config{
		Env:      "test",
		LogLevel: "error",
		NSE: config.NSEConfig{
			MaxRetries: 3,
			Timeout:    2 * time.Second,
			PaceDelay:  5 * time.Second,
			RetryDelay: 10 * time.Second,
		},
	}
	ep := &config.Endpoints{
		Host:          site.server.URL,
		DiagnosticURL: diagnosticURL,
		WarmupURLs:    []string{site.server.URL + "/", site.server.URL + "/option-chain"},
		UserAgents:    []string{"agent-a", "agent-b"},
	}
	return New(cfg, ep, logger.NewNop()).WithSleep(rec.sleep)
}

func TestFetchSuccess(t *testing.T) {
	site := newSiteStub(t, 0)
	rec := &sleepRecorder{}
	client := testClient(site, "", rec)

	body, err := client.Fetch(context.Background(), site.server.URL+"/api/marketStatus", FetchOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"marketState":[]}`, string(body))

	// warm-up always precedes the real request
	assert.Equal(t, []string{"/", "/api/marketStatus"}, site.sequence)

	// pacing happens even on the first attempt
	assert.Equal(t, []time.Duration{5 * time.Second}, rec.delays)

	assert.Contains(t, []string{site.server.URL + "/", site.server.URL + "/option-chain"}, site.referers[0])
	assert.Contains(t, []string{"agent-a", "agent-b"}, site.agents[0])
}

func TestFetchIgnoresWarmupStatus(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			site := newSiteStub(t, 0)
			site.rootCode.Store(int32(code))
			rec := &sleepRecorder{}
			client := testClient(site, "", rec)

			body, err := client.Fetch(context.Background(), site.server.URL+"/api/marketStatus", FetchOptions{})
			require.NoError(t, err)
			assert.JSONEq(t, `{"marketState":[]}`, string(body))
			assert.Equal(t, int32(1), site.warmups.Load())
			assert.Equal(t, int32(1), site.hits.Load())
		})
	}
}

func TestFetchRetriesWithFixedBackoff(t *testing.T) {
	site := newSiteStub(t, 2)
	rec := &sleepRecorder{}
	client := testClient(site, "", rec)

	body, err := client.Fetch(context.Background(), site.server.URL+"/api/data", FetchOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, body)

	assert.Equal(t, int32(3), site.hits.Load())
	assert.Equal(t, int32(3), site.warmups.Load(), "every attempt opens a new session")
	assert.Equal(t, []time.Duration{
		5 * time.Second, 10 * time.Second,
		5 * time.Second, 10 * time.Second,
		5 * time.Second,
	}, rec.delays)

	headers := client.CurrentHeaders()
	assert.NotEmpty(t, headers.Get("Referer"))
	assert.NotEmpty(t, headers.Get("User-Agent"))
}

func TestFetchExhaustedReachable(t *testing.T) {
	site := newSiteStub(t, 100)

	var diagnostics atomic.Int32
	diag := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		diagnostics.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer diag.Close()

	rec := &sleepRecorder{}
	client := testClient(site, diag.URL, rec)

	body, err := client.Fetch(context.Background(), site.server.URL+"/api/data", FetchOptions{})
	require.Error(t, err)
	assert.Nil(t, body)

	assert.True(t, errors.Is(err, apperrors.ErrConnectivity))

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.True(t, connErr.Reachable)
	assert.Equal(t, 3, connErr.Attempts)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)

	assert.Equal(t, int32(3), site.hits.Load())
	assert.Equal(t, int32(1), diagnostics.Load())
}

func TestFetchExhaustedUnreachable(t *testing.T) {
	site := newSiteStub(t, 100)

	diag := httptest.NewServer(http.NotFoundHandler())
	diagURL := diag.URL
	diag.Close()

	client := testClient(site, diagURL, &sleepRecorder{})

	_, err := client.Fetch(context.Background(), site.server.URL+"/api/data", FetchOptions{Retries: 1})
	require.Error(t, err)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.False(t, connErr.Reachable)
	assert.Equal(t, 1, connErr.Attempts)
	assert.Equal(t, int32(1), site.hits.Load())
}

func TestFetchCanceledContext(t *testing.T) {
	site := newSiteStub(t, 0)
	client := testClient(site, "", &sleepRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, site.server.URL+"/api/data", FetchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), site.hits.Load())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
