package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
)

// Коды ошибок в теле ответа.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeNotFound           = "not_found"
	CodeAlreadyExists      = "already_exists"
	CodeVersionConflict    = "version_conflict"
	CodeInvalidTransition  = "invalid_transition"
	CodeCartEmpty          = "cart_empty"
	CodeProductUnavailable = "product_unavailable"
	CodeCartUnavailable    = "cart_unavailable"
	CodeInternal           = "internal"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// classify сопоставляет доменную ошибку HTTP-статусу и коду.
func classify(err error) (int, string) {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrCartEmpty):
		return http.StatusUnprocessableEntity, CodeCartEmpty
	case errors.Is(err, domain.ErrProductUnavailable):
		return http.StatusUnprocessableEntity, CodeProductUnavailable
	case domain.IsValidation(err):
		return http.StatusBadRequest, CodeInvalidRequest
	case domain.IsVersionConflict(err):
		return http.StatusConflict, CodeVersionConflict
	case errors.Is(err, domain.ErrStatusTransition):
		return http.StatusConflict, CodeInvalidTransition
	case domain.IsAlreadyExists(err):
		return http.StatusConflict, CodeAlreadyExists
	case errors.Is(err, domain.ErrCartPersist):
		return http.StatusServiceUnavailable, CodeCartUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		message = "internal error"
	}
	respondError(w, status, code, message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
