package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/memstore"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/service"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/signature"
)

func TestWebhookHandler_routes(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		body        string
		acceptErr   error
		wantStatus  int
		wantBody    string
		wantAccepts int
	}{
		{
			name:       "challenge echoed",
			method:     http.MethodGet,
			target:     "/scfwebhook?challenge=abc123",
			wantStatus: http.StatusOK,
			wantBody:   `{"challenge":"abc123"}`,
		},
		{
			name:       "challenge on functions prefix",
			method:     http.MethodGet,
			target:     "/api/scfwebhook?challenge=xyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"challenge":"xyz"}`,
		},
		{
			name:       "get without challenge",
			method:     http.MethodGet,
			target:     "/scfwebhook",
			wantStatus: http.StatusBadRequest,
			wantBody:   msgMissingChallenge,
		},
		{
			name:        "accepted",
			method:      http.MethodPost,
			target:      "/scfwebhook?institution=TU",
			body:        `{"item_data":{"barcode":"12345"}}`,
			wantStatus:  http.StatusOK,
			wantBody:    msgReceived,
			wantAccepts: 1,
		},
		{
			name:        "invalid signature",
			method:      http.MethodPost,
			target:      "/scfwebhook?institution=TU",
			acceptErr:   domain.E(domain.KindInfrastructure, "op", domain.ErrInvalidSignature),
			wantStatus:  http.StatusInternalServerError,
			wantBody:    msgInvalidSignature,
			wantAccepts: 1,
		},
		{
			name:        "missing institution",
			method:      http.MethodPost,
			target:      "/scfwebhook",
			acceptErr:   domain.E(domain.KindValidation, "op", domain.ErrMissingInstitution),
			wantStatus:  http.StatusBadRequest,
			wantBody:    msgMissingInstitution,
			wantAccepts: 1,
		},
		{
			name:        "institution not found",
			method:      http.MethodPost,
			target:      "/scfwebhook?institution=XX",
			acceptErr:   domain.E(domain.KindInfrastructure, "op", fmt.Errorf("%w: XX", domain.ErrInstitutionNotFound)),
			wantStatus:  http.StatusInternalServerError,
			wantBody:    msgInstitutionNotFound,
			wantAccepts: 1,
		},
		{
			name:        "invalid json",
			method:      http.MethodPost,
			target:      "/scfwebhook?institution=TU",
			acceptErr:   domain.E(domain.KindValidation, "op", domain.ErrInvalidJSON),
			wantStatus:  http.StatusBadRequest,
			wantBody:    msgInvalidJSON,
			wantAccepts: 1,
		},
		{
			name:        "missing barcode",
			method:      http.MethodPost,
			target:      "/scfwebhook?institution=TU",
			acceptErr:   domain.E(domain.KindValidation, "op", domain.ErrMissingBarcode),
			wantStatus:  http.StatusBadRequest,
			wantBody:    msgMissingBarcode,
			wantAccepts: 1,
		},
		{
			name:        "enqueue failure",
			method:      http.MethodPost,
			target:      "/scfwebhook?institution=TU",
			acceptErr:   domain.E(domain.KindInfrastructure, "op", domain.ErrEnqueueFailed),
			wantStatus:  http.StatusInternalServerError,
			wantBody:    msgEnqueueFailed,
			wantAccepts: 1,
		},
		{
			name:        "unclassified failure",
			method:      http.MethodPost,
			target:      "/scfwebhook?institution=TU",
			acceptErr:   errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantBody:    msgInternal,
			wantAccepts: 1,
		},
		{
			name:       "method not allowed",
			method:     http.MethodPut,
			target:     "/scfwebhook",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockWebhookService{acceptErr: tt.acceptErr}
			router := NewRouter(svc, nil, 0, zap.NewNop())

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("X-Exl-Signature", "sig")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, strings.TrimSpace(rec.Body.String()))
			}
			assert.Equal(t, tt.wantAccepts, svc.calls)
		})
	}
}

func TestWebhookHandler_passesRequestThrough(t *testing.T) {
	svc := &mockWebhookService{}
	router := NewRouter(svc, nil, 0, zap.NewNop())

	body := `{"item_data":{"barcode":"12345"}}`
	req := httptest.NewRequest(http.MethodPost, "/scfwebhook?institution=TU", strings.NewReader(body))
	req.Header.Set("X-Exl-Signature", "n9h4nbtY6kgo0ns104I3W2khZH0lM9oiVLqLlmyeb+U=")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.last)
	assert.Equal(t, "TU", svc.last.InstitutionCode)
	assert.Equal(t, "n9h4nbtY6kgo0ns104I3W2khZH0lM9oiVLqLlmyeb+U=", svc.last.Signature)
	assert.Equal(t, body, string(svc.last.Body))
	assert.NotEmpty(t, svc.last.RequestID)
}

func TestWebhookHandler_bodyLimit(t *testing.T) {
	svc := &mockWebhookService{}
	router := NewRouter(svc, nil, 16, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/scfwebhook?institution=TU",
		strings.NewReader(`{"item_data":{"barcode":"12345"}}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, svc.calls)
}

type staticDirectory map[string]*entity.Institution

func (d staticDirectory) Lookup(_ context.Context, code string) (*entity.Institution, error) {
	if inst, ok := d[code]; ok {
		return inst, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrInstitutionNotFound, code)
}

// Exercises the handler against the real intake service and an in-memory
// queue.
func TestWebhookHandler_endToEnd(t *testing.T) {
	const secret = "test_secret"

	tests := []struct {
		name         string
		body         string
		signature    string
		institution  string
		wantStatus   int
		wantBody     string
		wantMessages int
	}{
		{
			name:         "valid webhook enqueues one task",
			body:         `{"item_data":{"barcode":"12345"}}`,
			institution:  "TU",
			wantStatus:   http.StatusOK,
			wantMessages: 1,
		},
		{
			name:         "numeric barcode enqueues one task",
			body:         `{"item_data":{"barcode":12345}}`,
			institution:  "TU",
			wantStatus:   http.StatusOK,
			wantMessages: 1,
		},
		{
			name:        "item_data of the wrong type",
			body:        `{"item_data":"x"}`,
			institution: "TU",
			wantStatus:  http.StatusBadRequest,
			wantBody:    msgMissingBarcode,
		},
		{
			name:        "array body",
			body:        `[]`,
			institution: "TU",
			wantStatus:  http.StatusBadRequest,
			wantBody:    msgMissingBarcode,
		},
		{
			name:        "truncated body",
			body:        `{"item_data":`,
			institution: "TU",
			wantStatus:  http.StatusBadRequest,
			wantBody:    msgInvalidJSON,
		},
		{
			name:        "valid signature without barcode",
			body:        `{"key": "value"}`,
			signature:   "n9h4nbtY6kgo0ns104I3W2khZH0lM9oiVLqLlmyeb+U=",
			institution: "TU",
			wantStatus:  http.StatusBadRequest,
		},
		{
			name:        "forged signature",
			body:        `{"item_data":{"barcode":"12345"}}`,
			signature:   "n9h4nbtY6kgo0ns104I3W2khZH0lM9oiVLqLlmyeb+U=",
			institution: "TU",
			wantStatus:  http.StatusInternalServerError,
		},
		{
			name:        "unknown institution",
			body:        `{"item_data":{"barcode":"12345"}}`,
			institution: "XX",
			wantStatus:  http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := memstore.NewQueue(zap.NewNop())
			dir := staticDirectory{"TU": {ID: 1, Name: "Test University", Code: "TU", APIKey: "k"}}
			svc := service.NewWebhookService(dir, queue, service.WebhookOptions{
				Secret:         secret,
				RetrievalQueue: "barcode-retrieval-queue",
			}, zap.NewNop())
			router := NewRouter(svc, nil, 0, zap.NewNop())

			sig := tt.signature
			if sig == "" {
				sig = signature.Sign([]byte(tt.body), secret)
			}

			req := httptest.NewRequest(http.MethodPost, "/scfwebhook?institution="+tt.institution, strings.NewReader(tt.body))
			req.Header.Set("X-Exl-Signature", sig)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			msgs := queue.Peek("barcode-retrieval-queue")
			require.Len(t, msgs, tt.wantMessages)

			if tt.wantMessages == 1 {
				var task entity.BarcodeRetrievalTask
				require.NoError(t, json.Unmarshal(msgs[0], &task))
				assert.Equal(t, entity.BarcodeRetrievalTask{Institution: "TU", Barcode: "12345", Process: "item_webhook"}, task)
			}
		})
	}
}
