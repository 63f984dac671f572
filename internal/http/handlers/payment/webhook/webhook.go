// Package webhook реализует HTTP-обработчик платёжного webhook.
//
// Подпись проверяется HMAC-SHA256 по телу запроса. После успешной проверки
// подписи обработчик всегда отвечает 200: провайдер повторяет неуспешные
// доставки, а повторная активация идемпотентна по payment_id.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/unsaidapp/unsaid-backend/internal/lib/sl"
	"github.com/unsaidapp/unsaid-backend/internal/paymentprovider"
	"github.com/unsaidapp/unsaid-backend/internal/services/payment"
)

// Service описывает интерфейс обработки событий платёжного провайдера.
type Service interface {
	ProcessWebhookEvent(ctx context.Context, payload *paymentprovider.WebhookPayload) error
}

// Handler управляет HTTP-запросами платёжного webhook.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый Handler с переданными логгером, сервисом и секретом.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Проверка подписи webhook (X-Razorpay-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// ServeHTTP godoc
// @Summary Платёжный webhook
// @Description Принимает события провайдера и активирует подписки по оплаченным платежам.
// @Tags Payments
// @Accept  json
// @Success 200 "Событие принято"
// @Failure 400 "Некорректное тело запроса"
// @Failure 401 "Неверная подпись"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	signature := r.Header.Get("X-Razorpay-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload paymentprovider.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.service.ProcessWebhookEvent(r.Context(), &payload); err != nil {
		if errors.Is(err, payment.ErrUnknownEvent) {
			log.Info("ignored webhook event", slog.String("event", payload.Event))
		} else {
			log.Error("failed to process webhook event", sl.Err(err))
		}
	}

	log.Info("webhook processed", slog.String("event", payload.Event),
		slog.String("payment_id", payload.Payload.Payment.Entity.ID))
	w.WriteHeader(http.StatusOK)
}
