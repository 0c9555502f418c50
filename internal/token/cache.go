// Package token implements the OAuth2 client-credentials bearer-token
// cache shared by every proxied request: at most one UAA token exchange
// in flight at a time, with all waiters observing the same result.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sap-samples/ai-core-gateway/internal/config"
	"github.com/sap-samples/ai-core-gateway/internal/gatewayerr"
)

// BearerToken is an immutable UAA access token plus its expiry instant.
type BearerToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// validAt reports whether t is still usable at `now`, honoring the skew
// margin so callers never hand out a token that is about to expire.
func (t BearerToken) validAt(now time.Time) bool {
	return t.AccessToken != "" && now.Add(config.TokenExpirySkew).Before(t.ExpiresAt)
}

// tokenResponse is the UAA client-credentials grant response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Cache holds a single BearerToken slot with single-flight refresh.
//
// The slot is either Empty, Valid (current holds an unexpired token), or
// Refreshing (current may be stale or empty, and refreshing is non-nil:
// a channel that closes once the in-flight exchange publishes its
// result). GetToken never starts a second exchange while refreshing is
// non-nil; it instead waits on that channel and re-reads current.
type Cache struct {
	mu         sync.Mutex
	current    BearerToken
	refreshing chan struct{}
	refreshErr error

	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// New builds a token Cache for the given UAA credentials.
func New(cred config.Credentials, httpClient *http.Client) *Cache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DefaultDialTimeout}
	}
	return &Cache{
		tokenURL:     cred.UAATokenURL,
		clientID:     cred.UAAClientID,
		clientSecret: cred.UAAClientSecret,
		httpClient:   httpClient,
	}
}

// GetToken returns an unexpired bearer token, refreshing it if necessary.
// Under concurrent calls, exactly one caller performs the UAA exchange;
// the rest wait for it to complete and then read the published result.
func (c *Cache) GetToken(ctx context.Context) (BearerToken, error) {
	for {
		c.mu.Lock()
		if c.current.validAt(time.Now()) {
			tok := c.current
			c.mu.Unlock()
			return tok, nil
		}

		if c.refreshing != nil {
			// Someone else is already refreshing; wait for them and share
			// whatever they publish rather than starting a second exchange
			// against a UAA that may be down.
			waitCh := c.refreshing
			c.mu.Unlock()
			select {
			case <-waitCh:
				c.mu.Lock()
				tok, err := c.current, c.refreshErr
				c.mu.Unlock()
				if err != nil {
					return BearerToken{}, err
				}
				if tok.validAt(time.Now()) {
					return tok, nil
				}
				continue // published token already stale; try again
			case <-ctx.Done():
				return BearerToken{}, ctx.Err()
			}
		}

		// Become the refresher.
		done := make(chan struct{})
		c.refreshing = done
		c.mu.Unlock()

		tok, err := c.exchange(ctx)

		c.mu.Lock()
		if err == nil {
			c.current = tok
		}
		c.refreshErr = err
		c.refreshing = nil
		c.mu.Unlock()
		close(done)

		if err != nil {
			return BearerToken{}, err
		}
		return tok, nil
	}
}

// Invalidate clears the current token so the next GetToken call forces a
// fresh exchange. Used by the Proxy Engine's retry-on-401 path.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = BearerToken{}
	c.mu.Unlock()
}

func (c *Cache) exchange(ctx context.Context) (BearerToken, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return BearerToken{}, gatewayerr.Auth("building token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return BearerToken{}, gatewayerr.Auth("uaa token exchange failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return BearerToken{}, gatewayerr.Auth("reading uaa response", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("uaa token exchange rejected")
		return BearerToken{}, gatewayerr.Auth(fmt.Sprintf("uaa returned status %d", resp.StatusCode), nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		return BearerToken{}, gatewayerr.Auth("uaa response malformed", err)
	}

	log.Debug().Dur("elapsed", time.Since(start)).Int64("expires_in", tr.ExpiresIn).Msg("uaa token refreshed")
	return BearerToken{
		AccessToken: tr.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// RunBackgroundRefresh starts a pre-refresh loop that wakes shortly
// before the current token would expire and proactively refreshes it,
// so the request path rarely observes a cold cache. It exits when ctx
// is cancelled. Its presence never alters the single-flight invariant:
// it simply calls GetToken like any other caller.
func (c *Cache) RunBackgroundRefresh(ctx context.Context) {
	for {
		c.mu.Lock()
		expiresAt := c.current.ExpiresAt
		c.mu.Unlock()

		wait := config.PreRefreshMargin
		if !expiresAt.IsZero() {
			if d := time.Until(expiresAt) - config.PreRefreshMargin; d > 0 {
				wait = d
			}
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}

		if _, err := c.GetToken(ctx); err != nil {
			log.Warn().Err(err).Msg("background token pre-refresh failed")
		}
	}
}
