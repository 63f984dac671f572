// Package payment связывает платёжного провайдера с учётом подписок:
// создание ордеров, подтверждение оплаты клиентом и обработка webhook.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/paymentprovider"
	"github.com/unsaidapp/unsaid-backend/internal/services/subscription"
)

// ErrUnknownEvent возвращается для событий webhook, которые сервис
// не обрабатывает.
var ErrUnknownEvent = errors.New("unhandled webhook event")

// События провайдера, активирующие подписку.
const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
)

type OrderProvider interface {
	CreateOrder(reqParams paymentprovider.CreateOrderRequest) (*paymentprovider.CreateOrderResponse, error)
}

type Ledger interface {
	Activate(ctx context.Context, userUID, plan, paymentID string, now time.Time) (*models.Subscription, bool, error)
}

// Service реализует платёжные операции поверх провайдера и учёта подписок.
type Service struct {
	provider OrderProvider
	ledger   Ledger
	log      *slog.Logger
}

func New(provider OrderProvider, ledger Ledger, log *slog.Logger) *Service {
	return &Service{
		provider: provider,
		ledger:   ledger,
		log:      log,
	}
}

// OrderResult данные созданного ордера для клиента.
type OrderResult struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Plan     string `json:"plan"`
}

// CreateOrder создаёт у провайдера ордер на оплату выбранного плана.
// UID пользователя и план кладутся в notes ордера: по ним webhook
// провайдера привязывает платёж к пользователю.
func (s *Service) CreateOrder(ctx context.Context, userUID, plan string) (*OrderResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	amount, err := subscription.PlanAmount(plan)
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.CreateOrder(paymentprovider.CreateOrderRequest{
		Amount:         int(amount),
		Currency:       subscription.Currency,
		Receipt:        fmt.Sprintf("subscription_%s_%d", userUID, time.Now().Unix()),
		PaymentCapture: 1,
		Notes: map[string]string{
			"user_uid": userUID,
			"plan":     plan,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.log.Info("created payment order",
		slog.String("user_uid", userUID),
		slog.String("order_id", resp.ID),
		slog.String("plan", plan))

	return &OrderResult{
		OrderID:  resp.ID,
		Amount:   int64(resp.Amount),
		Currency: resp.Currency,
		Plan:     plan,
	}, nil
}

// Confirm активирует подписку по подтверждению оплаты от клиента.
// Повторное подтверждение того же платежа идемпотентно.
func (s *Service) Confirm(ctx context.Context, userUID string, req models.PaymentConfirmation) (*models.Subscription, bool, error) {
	return s.ledger.Activate(ctx, userUID, req.Plan, req.PaymentID, time.Now())
}

// ProcessWebhookEvent активирует подписку по событию оплаты от провайдера.
// Событие без user_uid или плана в notes логируется и пропускается:
// провайдер повторяет webhook, и падение здесь заспамило бы очередь
// заведомо необрабатываемыми повторами.
func (s *Service) ProcessWebhookEvent(ctx context.Context, payload *paymentprovider.WebhookPayload) error {
	if payload.Event != EventPaymentCaptured && payload.Event != EventPaymentAuthorized {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, payload.Event)
	}

	entity := payload.Payload.Payment.Entity
	userUID := entity.Notes["user_uid"]
	plan := entity.Notes["plan"]
	if userUID == "" || plan == "" {
		s.log.Warn("webhook payment without user notes, skipping",
			slog.String("payment_id", entity.ID))
		return nil
	}

	_, already, err := s.ledger.Activate(ctx, userUID, plan, entity.ID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}
	if already {
		s.log.Info("webhook payment already activated",
			slog.String("payment_id", entity.ID))
	}
	return nil
}
