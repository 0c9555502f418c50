package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sap-samples/ai-core-gateway/internal/config"
)

func newTestGateway(keys ...string) *Gateway {
	return New(&config.Config{APIKeys: keys}, nil, nil, nil)
}

func TestExtractAPIKey_Precedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	r.Header.Set("Authorization", "Bearer from-bearer")
	r.Header.Set("x-api-key", "from-api-key")
	r.Header.Set("x-goog-api-key", "from-goog")
	assert.Equal(t, "from-bearer", extractAPIKey(r))

	r2 := httptest.NewRequest(http.MethodPost, "/v1/messages", nil)
	r2.Header.Set("x-api-key", "from-api-key")
	r2.Header.Set("x-goog-api-key", "from-goog")
	assert.Equal(t, "from-api-key", extractAPIKey(r2))

	r3 := httptest.NewRequest(http.MethodPost, "/v1beta/models/gemini-2.5-pro:generateContent", nil)
	r3.Header.Set("x-goog-api-key", "from-goog")
	assert.Equal(t, "from-goog", extractAPIKey(r3))
}

func TestAuthenticate_RejectsEmptyWrongAndWhitespace(t *testing.T) {
	g := newTestGateway("k1", "k2")

	assert.False(t, g.authenticate(""))
	assert.False(t, g.authenticate("wrong"))
	assert.False(t, g.authenticate("k1 "))
	assert.False(t, g.authenticate(" k1"))
	assert.True(t, g.authenticate("k1"))
	assert.True(t, g.authenticate("k2"))
}
