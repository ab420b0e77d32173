package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/logger"
)

// errorMapping binds a sentinel to its HTTP status, code and public message.
type errorMapping struct {
	sentinel error
	status   int
	code     string
	message  string
}

// errorMappings is checked in order; unmatched errors become 500 processing_failed.
var errorMappings = []errorMapping{
	{domain.ErrInvalidRequest, http.StatusBadRequest, codeBadRequest, ""},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProcessingFailed, "embedding provider unavailable"},
	{domain.ErrIndexNotInitialized, http.StatusServiceUnavailable, codeIndexUnavailable, "corpus index is not built"},
	{domain.ErrIndexNotFound, http.StatusServiceUnavailable, codeIndexUnavailable, "corpus index is not built"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// handleDomainError maps err to a response. Client errors echo the validation message;
// everything else gets a fixed message so internal detail never reaches the caller.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, m := range errorMappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			log.Warn("Request failed", zap.Int("status", m.status), zap.Error(err))
		}
		writeError(w, m.status, m.code, msg)
		return
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeProcessingFailed, "processing failed")
}
