package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/primary"
)

// DefaultMaxBodyBytes bounds webhook bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// WebhookHandler handles GET and POST /scfwebhook.
type WebhookHandler struct {
	service      primary.WebhookService
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewWebhookHandler creates a handler for catalog item webhooks.
func NewWebhookHandler(service primary.WebhookService, maxBodyBytes int64, logger *zap.Logger) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &WebhookHandler{
		service:      service,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.Named("webhook-handler"),
	}
}

// Challenge answers the registration handshake. It never checks a
// signature.
func (h *WebhookHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("challenge")
	if challenge == "" {
		respondText(w, http.StatusBadRequest, msgMissingChallenge)
		return
	}

	h.logger.Info("webhook challenge answered", zap.String("request_id", middleware.GetReqID(r.Context())))
	respondJSON(w, http.StatusOK, ChallengeResponse{Challenge: challenge})
}

// Receive accepts an item webhook.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		h.logger.Error("failed to read request body", zap.String("request_id", requestID), zap.Error(err))
		respondText(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		h.logger.Warn("webhook body too large",
			zap.String("request_id", requestID),
			zap.Int64("limit", h.maxBodyBytes),
		)
		respondText(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return
	}

	_, err = h.service.Accept(r.Context(), &primary.WebhookRequest{
		InstitutionCode: r.URL.Query().Get("institution"),
		Signature:       r.Header.Get(domain.SignatureHeader),
		Body:            body,
		RequestID:       requestID,
	})
	if err != nil {
		status, msg := statusFor(err)
		respondText(w, status, msg)
		return
	}

	respondText(w, http.StatusOK, msgReceived)
}

// statusFor maps an Accept failure to its HTTP response.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusInternalServerError, msgInvalidSignature
	case errors.Is(err, domain.ErrMissingInstitution):
		return http.StatusBadRequest, msgMissingInstitution
	case errors.Is(err, domain.ErrInstitutionNotFound):
		return http.StatusInternalServerError, msgInstitutionNotFound
	case errors.Is(err, domain.ErrInvalidJSON):
		return http.StatusBadRequest, msgInvalidJSON
	case errors.Is(err, domain.ErrMissingBarcode):
		return http.StatusBadRequest, msgMissingBarcode
	case errors.Is(err, domain.ErrEnqueueFailed):
		return http.StatusInternalServerError, msgEnqueueFailed
	}

	if domain.KindOf(err) == domain.KindValidation {
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, msgInternal
}
