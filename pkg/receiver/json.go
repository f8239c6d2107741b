package receiver

import (
	"encoding/json"
	"net/http"

	"github.com/cuemby/fleetguard/pkg/log"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithComponent("receiver").Error().Err(err).Msg("failed to encode integrity response")
	}
}
