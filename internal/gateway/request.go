package gateway

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sap-samples/ai-core-gateway/internal/family"
)

// parsedRequest is what the front-end needs to route and proxy a
// request, extracted from the body (or path, for Gemini) without a full
// unmarshal — the rest of the payload is forwarded byte-for-byte.
type parsedRequest struct {
	model     string
	streaming bool
}

// parseOpenAIOrClaudeBody reads the shared `model`/`stream` shape both
// wire protocols use at the top level of the JSON body.
func parseOpenAIOrClaudeBody(body []byte) parsedRequest {
	return parsedRequest{
		model:     gjson.GetBytes(body, "model").String(),
		streaming: gjson.GetBytes(body, "stream").Bool(),
	}
}

// parseGeminiPath splits the `{model}:{action}` path segment Gemini
// packs the model name and the streaming/non-streaming action into.
func parseGeminiPath(modelAction string) parsedRequest {
	idx := strings.LastIndex(modelAction, ":")
	if idx < 0 {
		return parsedRequest{model: modelAction}
	}
	return parsedRequest{
		model:     modelAction[:idx],
		streaming: modelAction[idx+1:] == "streamGenerateContent",
	}
}

// upstreamSuffix returns the path (and query, where applicable) appended
// to a deployment's base URL for the given family and streaming mode.
// The exact suffix schema is AI Core's own contract, not documented in
// full here; this table reflects what the deployed proxies observe.
func upstreamSuffix(fam family.Family, streaming bool) string {
	switch fam {
	case family.OpenAI:
		return "/chat/completions?api-version=2023-05-15"
	case family.Claude:
		if streaming {
			return "/invoke-with-response-stream"
		}
		return "/invoke"
	case family.Gemini:
		if streaming {
			return ":streamGenerateContent"
		}
		return ":generateContent"
	default:
		return ""
	}
}
