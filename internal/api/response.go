package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/GraminSeva/TriageLine/internal/models"
)

// fallbackErrorResponse is marshaled once at startup so a reply can
// still go out when encoding the real payload fails mid-request.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("api: cannot marshal fallback error response: %v", err))
	}
}

// writeJSONResponse marshals before touching the ResponseWriter, so an
// encoding failure can still change the status line.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response any) {
	body, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal response", "error", err)
		body = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write response", "error", err)
	}
}
