package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sap-samples/ai-core-gateway/internal/config"
)

func newTestServer(t *testing.T, calls *atomic.Int64, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newCache(url string) *Cache {
	return New(config.Credentials{
		UAATokenURL:     url,
		UAAClientID:     "client-id",
		UAAClientSecret: "client-secret",
	}, http.DefaultClient)
}

func TestGetToken_SuccessfulExchange(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, http.StatusOK, `{"access_token":"tok-1","expires_in":3600}`)
	defer srv.Close()

	c := newCache(srv.URL)
	tok, err := c.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetToken_CachesUntilExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, http.StatusOK, `{"access_token":"tok-1","expires_in":3600}`)
	defer srv.Close()

	c := newCache(srv.URL)
	for i := 0; i < 5; i++ {
		_, err := c.GetToken(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, calls.Load(), "cached token should not trigger repeated exchanges")
}

func TestGetToken_ConcurrentCallsSingleFlight(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, http.StatusOK, `{"access_token":"tok-1","expires_in":3600}`)
	defer srv.Close()

	c := newCache(srv.URL)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := c.GetToken(context.Background())
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, calls.Load(), "50 concurrent callers should produce exactly one UAA exchange")
}

func TestGetToken_RefreshAfterExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, http.StatusOK, `{"access_token":"tok-1","expires_in":0}`)
	defer srv.Close()

	c := newCache(srv.URL)
	_, err := c.GetToken(context.Background())
	require.NoError(t, err)

	// expires_in=0 combined with the skew margin means the token is
	// immediately considered expired, so the next call refreshes again.
	_, err = c.GetToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGetToken_UAAFailurePropagatesToAllWaiters(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, http.StatusUnauthorized, `{"error":"invalid_client"}`)
	defer srv.Close()

	c := newCache(srv.URL)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := c.GetToken(context.Background())
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.Error(t, err)
	}
	assert.EqualValues(t, 1, calls.Load(), "waiters queued on a failed exchange should share its error, not each retry against a down UAA")
}

func TestInvalidate_ForcesRefresh(t *testing.T) {
	var calls atomic.Int64
	srv := newTestServer(t, &calls, http.StatusOK, `{"access_token":"tok-1","expires_in":3600}`)
	defer srv.Close()

	c := newCache(srv.URL)
	_, err := c.GetToken(context.Background())
	require.NoError(t, err)

	c.Invalidate()
	_, err = c.GetToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestBearerToken_ValidAtRespectsSkew(t *testing.T) {
	now := time.Now()
	tok := BearerToken{AccessToken: "x", ExpiresAt: now.Add(30 * time.Second)}
	assert.False(t, tok.validAt(now), "token expiring within the skew window should be treated as expired")

	tok2 := BearerToken{AccessToken: "x", ExpiresAt: now.Add(5 * time.Minute)}
	assert.True(t, tok2.validAt(now))
}
