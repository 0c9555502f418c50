package gateway

import (
	"github.com/tidwall/gjson"

	"github.com/sap-samples/ai-core-gateway/internal/family"
	"github.com/sap-samples/ai-core-gateway/internal/telemetry"
)

// usageResult is what an observer has learned from the stream so far.
type usageResult struct {
	inputTokens  int
	outputTokens int
	present      bool
}

// usageObserver inspects each chunk of an upstream response body as it
// passes through, without buffering more than one partial JSON object
// across calls. It never alters what is forwarded to the client.
type usageObserver interface {
	feed(chunk []byte)
	result() usageResult
	// estimatedOutputTokens returns a tiktoken-derived best-effort token
	// count for the response body, for callers to fall back to when
	// result().present is false.
	estimatedOutputTokens() int
}

// newUsageObserver returns the observer for fam. Non-streaming responses
// use the same observers: a single feed() call carries the whole body.
func newUsageObserver(fam family.Family) usageObserver {
	switch fam {
	case family.Claude:
		return &claudeObserver{}
	case family.Gemini:
		return &geminiObserver{}
	default:
		return &openAIObserver{}
	}
}

// sampleCap bounds how much of a response body objectScanner retains for
// token estimation. Responses longer than this are estimated from the
// sample and scaled by the true-to-sampled byte ratio, trading precision
// for the same non-buffering guarantee the rest of the observer holds to.
const sampleCap = 16 * 1024

// objectScanner accumulates bytes across feed() calls and yields
// complete top-level `{...}` JSON objects, tolerating chunk boundaries
// that land mid-object or between frames (SSE "data: " markers,
// "[DONE]" sentinels, NDJSON newlines, or array commas/brackets are all
// skipped over rather than parsed). It also keeps a bounded sample of
// every byte seen, used only as a fallback token-count estimate when the
// upstream never reports real usage.
type objectScanner struct {
	pending    []byte // bytes from an in-progress object, carried to the next feed
	sample     []byte
	totalBytes int
}

// scan appends chunk to any pending partial object and returns every
// object completed as a result, retaining an unfinished trailing object
// (if any) for the next call.
func (s *objectScanner) scan(chunk []byte) [][]byte {
	s.recordSample(chunk)

	buf := append(s.pending, chunk...)
	s.pending = nil

	var objects [][]byte
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if depth == 0 {
			if b == '{' {
				start = i
				depth = 1
				inString = false
				escaped = false
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				objects = append(objects, buf[start:i+1])
				start = -1
			}
		}
	}

	if depth > 0 && start >= 0 {
		s.pending = append([]byte(nil), buf[start:]...)
	}
	return objects
}

func (s *objectScanner) recordSample(chunk []byte) {
	s.totalBytes += len(chunk)
	if len(s.sample) >= sampleCap {
		return
	}
	remaining := sampleCap - len(s.sample)
	if remaining > len(chunk) {
		remaining = len(chunk)
	}
	s.sample = append(s.sample, chunk[:remaining]...)
}

// estimatedTokens returns a best-effort token count for everything fed
// to the scanner so far, scaled up from the retained sample when the
// full body exceeded sampleCap.
func (s *objectScanner) estimatedTokens() int {
	if len(s.sample) == 0 {
		return 0
	}
	n := telemetry.EstimateTokens(string(s.sample))
	if s.totalBytes > len(s.sample) {
		n = n * s.totalBytes / len(s.sample)
	}
	return n
}

// hasUsage reports whether a gjson result is a present, non-null value —
// a bare `"usage":null` frame must not be mistaken for real usage.
func hasUsage(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

// openAIObserver reads `usage.prompt_tokens` / `usage.completion_tokens`
// from the final SSE frame before `[DONE]`, per §4.6.
type openAIObserver struct {
	scanner objectScanner
	res     usageResult
}

func (o *openAIObserver) feed(chunk []byte) {
	for _, obj := range o.scanner.scan(chunk) {
		usage := gjson.GetBytes(obj, "usage")
		if !hasUsage(usage) {
			continue
		}
		o.res = usageResult{
			inputTokens:  int(usage.Get("prompt_tokens").Int()),
			outputTokens: int(usage.Get("completion_tokens").Int()),
			present:      true,
		}
	}
}

func (o *openAIObserver) result() usageResult        { return o.res }
func (o *openAIObserver) estimatedOutputTokens() int { return o.scanner.estimatedTokens() }

// claudeObserver reads the `message_stop` event's
// `amazon-bedrock-invocationMetrics` block.
type claudeObserver struct {
	scanner objectScanner
	res     usageResult
}

func (c *claudeObserver) feed(chunk []byte) {
	for _, obj := range c.scanner.scan(chunk) {
		if gjson.GetBytes(obj, "type").String() != "message_stop" {
			continue
		}
		metrics := gjson.GetBytes(obj, "amazon-bedrock-invocationMetrics")
		if !hasUsage(metrics) {
			continue
		}
		c.res = usageResult{
			inputTokens:  int(metrics.Get("inputTokenCount").Int()),
			outputTokens: int(metrics.Get("outputTokenCount").Int()),
			present:      true,
		}
	}
}

func (c *claudeObserver) result() usageResult        { return c.res }
func (c *claudeObserver) estimatedOutputTokens() int { return c.scanner.estimatedTokens() }

// geminiObserver reads `usageMetadata` from any frame that carries it,
// whether the response is NDJSON or SSE framed; the last frame seen
// with usage wins, per §4.6.
type geminiObserver struct {
	scanner objectScanner
	res     usageResult
}

func (g *geminiObserver) feed(chunk []byte) {
	for _, obj := range g.scanner.scan(chunk) {
		usage := gjson.GetBytes(obj, "usageMetadata")
		if !hasUsage(usage) {
			continue
		}
		prompt := int(usage.Get("promptTokenCount").Int())
		total := int(usage.Get("totalTokenCount").Int())
		g.res = usageResult{
			inputTokens:  prompt,
			outputTokens: total - prompt,
			present:      true,
		}
	}
}

func (g *geminiObserver) result() usageResult        { return g.res }
func (g *geminiObserver) estimatedOutputTokens() int { return g.scanner.estimatedTokens() }
