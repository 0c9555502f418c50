// Package gateway implements the HTTP front-end and proxy engine: it
// authenticates inbound requests, resolves the requested model against
// the deployment registry, forwards the request to SAP AI Core, and
// observes token usage inline as the response streams back.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/sap-samples/ai-core-gateway/internal/config"
	"github.com/sap-samples/ai-core-gateway/internal/registry"
	"github.com/sap-samples/ai-core-gateway/internal/telemetry"
	"github.com/sap-samples/ai-core-gateway/internal/token"
)

// Gateway wires together the token cache, deployment registry, and
// telemetry tracker behind one HTTP handler.
type Gateway struct {
	cfg        *config.Config
	registry   *registry.Registry
	tokens     *token.Cache
	tracker    *telemetry.Tracker
	httpClient *http.Client
	apiKeys    [][]byte
}

// New builds a Gateway ready to serve. Callers must call registry.Start
// separately before traffic arrives, so the first request never races
// an empty snapshot.
func New(cfg *config.Config, reg *registry.Registry, tokens *token.Cache, tracker *telemetry.Tracker) *Gateway {
	apiKeys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		apiKeys = append(apiKeys, []byte(k))
	}
	return &Gateway{
		cfg:      cfg,
		registry: reg,
		tokens:   tokens,
		tracker:  tracker,
		// Timeout is intentionally unset: streaming responses can run far
		// longer than any sane fixed deadline. Cancellation instead rides
		// the inbound request's context (client disconnect).
		httpClient: &http.Client{},
		apiKeys:    apiKeys,
	}
}

// Handler returns the http.Handler serving every inbound route.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", g.handleOpenAI)
	mux.HandleFunc("POST /v1/messages", g.handleClaude)
	mux.HandleFunc("POST /v1beta/models/{modelAction}", g.handleGemini)
	mux.HandleFunc("POST /openai/deployments/{model}/chat/completions", g.handleOpenAIDeploymentPath)
	return mux
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (g *Gateway) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		WriteTimeout:      config.DefaultServerWriteTimeout,
		ReadHeaderTimeout: config.DefaultServerReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
