package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sap-samples/ai-core-gateway/internal/gatewayerr"
	"github.com/sap-samples/ai-core-gateway/internal/utils"
)

// writeError renders err as the JSON envelope inbound callers see,
// picking the status the error kind maps to.
func writeError(w http.ResponseWriter, err error) {
	ge, ok := gatewayerr.As(err)
	if !ok {
		ge = gatewayerr.UpstreamTransient("unexpected error", err)
	}

	if ge.Kind == gatewayerr.KindClientAborted {
		log.Debug().Err(ge).Msg("client disconnected mid-stream")
		return
	}

	log.Error().Err(ge).Str("kind", string(ge.Kind)).Msg("request failed")
	writeErrorBody(w, ge.HTTPStatus(), ge.Message)
}

func writeUnauthorized(w http.ResponseWriter) {
	writeErrorBody(w, http.StatusUnauthorized, "unauthorized")
}

func writeModelNotFound(w http.ResponseWriter, model string) {
	writeError(w, gatewayerr.ModelNotFound(model))
}

func writeErrorBody(w http.ResponseWriter, status int, message string) {
	body, err := utils.MarshalNoEscape(map[string]string{"error": message})
	if err != nil {
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
