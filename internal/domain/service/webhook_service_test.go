package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/signature"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/primary"
)

const testSecret = "test_webhook_secret"

func signedRequest(institution, body string) *primary.WebhookRequest {
	return &primary.WebhookRequest{
		InstitutionCode: institution,
		Signature:       signature.Sign([]byte(body), testSecret),
		Body:            []byte(body),
		RequestID:       "req-1",
	}
}

func TestWebhookService_Accept(t *testing.T) {
	tests := []struct {
		name      string
		req       *primary.WebhookRequest
		opts      WebhookOptions
		dirErr    error
		sendErr   error
		wantErr   error
		wantKind  domain.Kind
		wantSends int
	}{
		{
			name:      "valid webhook is enqueued",
			req:       signedRequest("TU", `{"item_data":{"barcode":"12345"}}`),
			wantSends: 1,
		},
		{
			name:      "native item envelope is enqueued",
			req:       signedRequest("TU", `{"action":"ITEM","item":{"item_data":{"barcode":"12345"}}}`),
			wantSends: 1,
		},
		{
			name: "missing signature",
			req: func() *primary.WebhookRequest {
				r := signedRequest("TU", `{"item_data":{"barcode":"12345"}}`)
				r.Signature = ""
				return r
			}(),
			wantErr:  domain.ErrInvalidSignature,
			wantKind: domain.KindInfrastructure,
		},
		{
			name: "tampered body",
			req: func() *primary.WebhookRequest {
				r := signedRequest("TU", `{"item_data":{"barcode":"12345"}}`)
				r.Body = []byte(`{"item_data":{"barcode":"99999"}}`)
				return r
			}(),
			wantErr:  domain.ErrInvalidSignature,
			wantKind: domain.KindInfrastructure,
		},
		{
			name:     "secret not configured",
			req:      signedRequest("TU", `{"item_data":{"barcode":"12345"}}`),
			opts:     WebhookOptions{Secret: "", RetrievalQueue: "barcode-retrieval-queue"},
			wantErr:  domain.ErrInvalidSignature,
			wantKind: domain.KindInfrastructure,
		},
		{
			name: "development bypass skips verification",
			req: func() *primary.WebhookRequest {
				r := signedRequest("TU", `{"item_data":{"barcode":"12345"}}`)
				r.Signature = "garbage"
				return r
			}(),
			opts:      WebhookOptions{RetrievalQueue: "barcode-retrieval-queue", SkipSignature: true},
			wantSends: 1,
		},
		{
			name:     "missing institution parameter",
			req:      signedRequest("", `{"item_data":{"barcode":"12345"}}`),
			wantErr:  domain.ErrMissingInstitution,
			wantKind: domain.KindValidation,
		},
		{
			name:     "unknown institution",
			req:      signedRequest("XX", `{"item_data":{"barcode":"12345"}}`),
			wantErr:  domain.ErrInstitutionNotFound,
			wantKind: domain.KindInfrastructure,
		},
		{
			name:     "directory failure",
			req:      signedRequest("TU", `{"item_data":{"barcode":"12345"}}`),
			dirErr:   errors.New("connection refused"),
			wantErr:  domain.ErrInstitutionNotFound,
			wantKind: domain.KindInfrastructure,
		},
		{
			name:     "malformed JSON",
			req:      signedRequest("TU", `{"item_data":`),
			wantErr:  domain.ErrInvalidJSON,
			wantKind: domain.KindValidation,
		},
		{
			name:     "barcode missing",
			req:      signedRequest("TU", `{"item_data":{"pid":"23"}}`),
			wantErr:  domain.ErrMissingBarcode,
			wantKind: domain.KindValidation,
		},
		{
			name:      "numeric barcode is enqueued",
			req:       signedRequest("TU", `{"item_data":{"barcode":12345}}`),
			wantSends: 1,
		},
		{
			name:      "mistyped unrelated field keeps the barcode",
			req:       signedRequest("TU", `{"event":"ITEM_UPDATED","item_data":{"barcode":"12345"}}`),
			wantSends: 1,
		},
		{
			name:     "item_data is not an object",
			req:      signedRequest("TU", `{"item_data":"x"}`),
			wantErr:  domain.ErrMissingBarcode,
			wantKind: domain.KindValidation,
		},
		{
			name:     "body is an array",
			req:      signedRequest("TU", `[]`),
			wantErr:  domain.ErrMissingBarcode,
			wantKind: domain.KindValidation,
		},
		{
			name:     "barcode is an object",
			req:      signedRequest("TU", `{"item_data":{"barcode":{"value":"12345"}}}`),
			wantErr:  domain.ErrMissingBarcode,
			wantKind: domain.KindValidation,
		},
		{
			name:     "queue send failure",
			req:      signedRequest("TU", `{"item_data":{"barcode":"12345"}}`),
			sendErr:  errors.New("service unavailable"),
			wantErr:  domain.ErrEnqueueFailed,
			wantKind: domain.KindInfrastructure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testDirectory()
			dir.err = tt.dirErr
			sender := &mockSender{sendErr: tt.sendErr}

			opts := tt.opts
			if opts == (WebhookOptions{}) {
				opts = WebhookOptions{Secret: testSecret, RetrievalQueue: "barcode-retrieval-queue"}
			}

			svc := NewWebhookService(dir, sender, opts, zap.NewNop())
			task, err := svc.Accept(context.Background(), tt.req)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.wantKind, domain.KindOf(err))
				assert.Nil(t, task)
			} else {
				require.NoError(t, err)
				require.NotNil(t, task)
			}
			assert.Len(t, sender.sent, tt.wantSends)
		})
	}
}

func TestWebhookService_Accept_messageContent(t *testing.T) {
	sender := &mockSender{}
	svc := NewWebhookService(testDirectory(), sender,
		WebhookOptions{Secret: testSecret, RetrievalQueue: "barcode-retrieval-queue"}, zap.NewNop())

	// The payload names a different institution; only the query parameter counts.
	body := `{"institution":{"value":"OTHER"},"item_data":{"barcode":"12345"}}`
	_, err := svc.Accept(context.Background(), signedRequest("TU", body))
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "barcode-retrieval-queue", sender.sent[0].Queue)

	var got entity.BarcodeRetrievalTask
	sender.decode(t, 0, &got)
	assert.Equal(t, entity.BarcodeRetrievalTask{Institution: "TU", Barcode: "12345", Process: "item_webhook"}, got)
}

func TestWebhookService_Accept_numericBarcodeKeepsDigits(t *testing.T) {
	sender := &mockSender{}
	svc := NewWebhookService(testDirectory(), sender,
		WebhookOptions{Secret: testSecret, RetrievalQueue: "barcode-retrieval-queue"}, zap.NewNop())

	_, err := svc.Accept(context.Background(), signedRequest("TU", `{"item_data":{"barcode":31234000012345}}`))
	require.NoError(t, err)

	var got entity.BarcodeRetrievalTask
	sender.decode(t, 0, &got)
	assert.Equal(t, "31234000012345", got.Barcode)
}

func TestWebhookService_Accept_verifiesBeforeLookup(t *testing.T) {
	dir := testDirectory()
	svc := NewWebhookService(dir, &mockSender{},
		WebhookOptions{Secret: testSecret, RetrievalQueue: "q"}, zap.NewNop())

	req := signedRequest("TU", `{}`)
	req.Signature = signature.Sign([]byte(`{}`), "wrong")

	_, err := svc.Accept(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Zero(t, dir.calls, "directory must not be consulted for unauthenticated requests")
}

func TestWebhookService_Accept_logsSignatureProblems(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		signature string
		wantLevel zapcore.Level
		wantMsg   string
	}{
		{"missing header", testSecret, "", zapcore.WarnLevel, "X-Exl-Signature header is missing"},
		{"missing secret", "", "abc", zapcore.ErrorLevel, "webhook secret is not provided for validation"},
		{"mismatch", testSecret, "abc", zapcore.ErrorLevel, "invalid webhook signature received"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			svc := NewWebhookService(testDirectory(), &mockSender{},
				WebhookOptions{Secret: tt.secret, RetrievalQueue: "q"}, zap.New(core))

			req := signedRequest("TU", `{}`)
			req.Signature = tt.signature
			_, _ = svc.Accept(context.Background(), req)

			entries := logs.FilterMessage(tt.wantMsg).All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
		})
	}
}
