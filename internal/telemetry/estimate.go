package telemetry

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// EstimateTokens returns a best-effort token count for text using the
// cl100k_base encoding, for logging alongside (never in place of) a
// provider's actual usage figures when a response carries none. Falls
// back to a crude character-ratio estimate if the encoder cannot be
// loaded (e.g. no network access to fetch its BPE ranks on first use).
func EstimateTokens(text string) int {
	encOnce.Do(func() {
		if e, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			enc = e
		}
	})
	if enc == nil {
		const charsPerToken = 4
		return len(text) / charsPerToken
	}
	return len(enc.Encode(text, nil, nil))
}
