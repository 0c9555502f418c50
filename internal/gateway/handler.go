package gateway

import (
	"io"
	"net/http"

	"github.com/sap-samples/ai-core-gateway/internal/config"
)

// handleOpenAI serves POST /v1/chat/completions.
func (g *Gateway) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	g.handleJSONBody(w, r)
}

// handleClaude serves POST /v1/messages. The body shape differs from
// OpenAI's downstream, but the `model`/`stream` fields the front-end
// reads live at the same top-level keys.
func (g *Gateway) handleClaude(w http.ResponseWriter, r *http.Request) {
	g.handleJSONBody(w, r)
}

func (g *Gateway) handleJSONBody(w http.ResponseWriter, r *http.Request) {
	if !g.authenticate(extractAPIKey(r)) {
		writeUnauthorized(w)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	parsed := parseOpenAIOrClaudeBody(body)
	g.serve(w, r, parsed.model, parsed.streaming, body)
}

// handleOpenAIDeploymentPath serves the Azure-OpenAI-style deployment
// route clients built against the Azure SDK surface send instead of
// /v1/chat/completions. The model comes from the path segment, not the
// body, so it overrides whatever (if anything) the body's own `model`
// field says.
func (g *Gateway) handleOpenAIDeploymentPath(w http.ResponseWriter, r *http.Request) {
	if !g.authenticate(extractAPIKey(r)) {
		writeUnauthorized(w)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	parsed := parseOpenAIOrClaudeBody(body)
	g.serve(w, r, r.PathValue("model"), parsed.streaming, body)
}

// handleGemini serves both generateContent and streamGenerateContent:
// the action lives in the path, not the body.
func (g *Gateway) handleGemini(w http.ResponseWriter, r *http.Request) {
	if !g.authenticate(extractAPIKey(r)) {
		writeUnauthorized(w)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	parsed := parseGeminiPath(r.PathValue("modelAction"))
	g.serve(w, r, parsed.model, parsed.streaming, body)
}

func readBody(r *http.Request) ([]byte, error) {
	defer func() { _ = r.Body.Close() }()
	return io.ReadAll(io.LimitReader(r.Body, config.MaxRequestBodySize))
}
