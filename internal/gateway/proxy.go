package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sap-samples/ai-core-gateway/internal/config"
	"github.com/sap-samples/ai-core-gateway/internal/gatewayerr"
	"github.com/sap-samples/ai-core-gateway/internal/telemetry"
)

// serve is the Proxy Engine entry point shared by all three wire
// protocols: resolve the model, acquire a token, forward the body
// unchanged, stream the response back while observing usage.
func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, model string, streaming bool, body []byte) {
	requestID := uuid.NewString()
	start := time.Now()

	binding, ok := g.registry.Resolve(model)
	if !ok {
		writeModelNotFound(w, model)
		return
	}

	body = prepareBody(binding.Family, model, streaming, body)

	upstreamURL := binding.DeploymentURL + upstreamSuffix(binding.Family, streaming)

	resp, err := g.sendWithRetry(r.Context(), upstreamURL, body)
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	observer := newUsageObserver(binding.Family)
	if err := streamBody(w, resp.Body, observer); err != nil {
		log.Debug().Err(err).Str("request_id", requestID).Msg("proxy: stream ended early")
	}

	res := observer.result()
	ev := telemetry.UsageEvent{
		RequestID:     requestID,
		Timestamp:     start,
		Model:         model,
		Family:        string(binding.Family),
		InputTokens:   res.inputTokens,
		OutputTokens:  res.outputTokens,
		DurationMs:    time.Since(start).Milliseconds(),
		TokensPresent: res.present,
		StatusCode:    resp.StatusCode,
	}
	if !res.present {
		ev.EstimatedIn = telemetry.EstimateTokens(string(body))
		ev.EstimatedOut = observer.estimatedOutputTokens()
	}
	g.tracker.RecordUsage(ev)
}

// sendWithRetry issues the upstream request, retrying exactly once (with
// a forced token refresh) if the first attempt comes back 401. Further
// 401s are returned to the caller unchanged, per §4.5.
func (g *Gateway) sendWithRetry(ctx context.Context, upstreamURL string, body []byte) (*http.Response, error) {
	resp, err := g.sendOnce(ctx, upstreamURL, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	g.tokens.Invalidate()
	return g.sendOnce(ctx, upstreamURL, body)
}

func (g *Gateway) sendOnce(ctx context.Context, upstreamURL string, body []byte) (*http.Response, error) {
	tok, err := g.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, upstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, gatewayerr.UpstreamTransient("building upstream request", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("ai-resource-group", g.cfg.Credentials.ResourceGroup)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, gatewayerr.ClientAborted("client disconnected before upstream responded")
		}
		return nil, gatewayerr.UpstreamTransient("upstream request failed", err)
	}
	return resp, nil
}

// copyResponseHeaders forwards every upstream response header to the
// client unchanged, including SSE/NDJSON framing headers.
func copyResponseHeaders(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

// streamBody copies src to w chunk by chunk, feeding every chunk to
// observer and flushing after each write so the client sees bytes as
// they arrive rather than once the full body has buffered.
func streamBody(w http.ResponseWriter, src io.Reader, observer usageObserver) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, config.DefaultBufferSize)

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			observer.feed(chunk)
			if _, writeErr := w.Write(chunk); writeErr != nil {
				return gatewayerr.ClientAborted("client disconnected mid-stream")
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}
