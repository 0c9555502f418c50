// Package family classifies logical model names into the wire protocol
// family that determines upstream URL shape and usage-observer strategy.
package family

import "strings"

// Family is one of the three wire protocols the gateway speaks.
type Family string

const (
	OpenAI Family = "openai"
	Claude Family = "claude"
	Gemini Family = "gemini"
)

// Infer returns the family a logical model name most likely belongs to,
// based on its prefix. Inference is a heuristic used only for fallback
// lookup and usage-observer selection: an explicit ModelBinding always
// wins over name-based guessing.
func Infer(name string) Family {
	n := strings.ToLower(name)
	switch {
	case strings.HasPrefix(n, "claude") || strings.HasPrefix(n, "anthropic"):
		return Claude
	case strings.HasPrefix(n, "gemini"):
		return Gemini
	case strings.HasPrefix(n, "gpt") || strings.HasPrefix(n, "text-"):
		return OpenAI
	default:
		return OpenAI
	}
}
