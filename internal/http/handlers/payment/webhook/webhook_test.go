package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/unsaidapp/unsaid-backend/internal/paymentprovider"
	"github.com/unsaidapp/unsaid-backend/internal/services/payment"
)

// MockService реализует интерфейс webhook.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) ProcessWebhookEvent(ctx context.Context, payload *paymentprovider.WebhookPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler(t *testing.T) {
	const secret = "whsec_test"
	validBody := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","notes":{"user_uid":"u-1","plan":"lifetime"}}}}}`

	tests := []struct {
		name           string
		body           string
		signature      string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name:      "валидная подпись, событие обработано",
			body:      validBody,
			signature: sign(secret, validBody),
			setupMock: func(m *MockService) {
				m.On("ProcessWebhookEvent", mock.Anything, mock.MatchedBy(func(p *paymentprovider.WebhookPayload) bool {
					return p.Event == "payment.captured" && p.Payload.Payment.Entity.ID == "pay_1"
				})).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "отсутствует подпись",
			body:           validBody,
			signature:      "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "неверная подпись",
			body:           validBody,
			signature:      sign("wrong-secret", validBody),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "некорректный JSON с валидной подписью",
			body:           `{not json`,
			signature:      sign(secret, `{not json`),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "ошибка обработки не мешает подтверждению",
			body:      validBody,
			signature: sign(secret, validBody),
			setupMock: func(m *MockService) {
				m.On("ProcessWebhookEvent", mock.Anything, mock.Anything).
					Return(errors.New("db down"))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "неизвестное событие игнорируется",
			body:      validBody,
			signature: sign(secret, validBody),
			setupMock: func(m *MockService) {
				m.On("ProcessWebhookEvent", mock.Anything, mock.Anything).
					Return(payment.ErrUnknownEvent)
			},
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService, secret)

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("X-Razorpay-Signature", tt.signature)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}
