package gateway

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/sap-samples/ai-core-gateway/internal/family"
)

// gpt5Prefix identifies the OpenAI model generation whose Chat
// Completions surface rejects the legacy max_tokens/temperature pair.
const gpt5Prefix = "gpt-5"

// prepareBody applies the narrow, provider-versioned field migrations a
// pure pass-through would otherwise forward verbatim into an upstream
// 400: gpt-5* no longer accepts max_tokens or temperature, and Claude
// rejects temperature alongside an active thinking block. Anything not
// matched here is left untouched.
func prepareBody(fam family.Family, model string, streaming bool, body []byte) []byte {
	switch fam {
	case family.OpenAI:
		if strings.HasPrefix(model, gpt5Prefix) {
			body = renameField(body, "max_tokens", "max_completion_tokens")
			body = dropField(body, "temperature")
		}
	case family.Claude:
		if gjson.GetBytes(body, "thinking").Exists() {
			body = dropField(body, "temperature")
		}
	}
	return body
}

// renameField moves the value at src to dst, leaving body unchanged if
// src is absent. dst is overwritten if already present.
func renameField(body []byte, src, dst string) []byte {
	v := gjson.GetBytes(body, src)
	if !v.Exists() {
		return body
	}
	out, err := sjson.SetRawBytes(body, dst, []byte(v.Raw))
	if err != nil {
		return body
	}
	out, err = sjson.DeleteBytes(out, src)
	if err != nil {
		return body
	}
	return out
}

// dropField removes field from body, leaving body unchanged if the
// field is absent or the deletion fails.
func dropField(body []byte, field string) []byte {
	if !gjson.GetBytes(body, field).Exists() {
		return body
	}
	out, err := sjson.DeleteBytes(body, field)
	if err != nil {
		return body
	}
	return out
}
