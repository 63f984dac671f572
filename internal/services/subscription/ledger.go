// Package subscription реализует учёт подписок: активацию по платежу,
// ленивое истечение и проверку наличия активной подписки.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

// ErrUnknownPlan возвращается, когда запрошенный план не входит
// в закрытый набор планов.
var ErrUnknownPlan = errors.New("unknown subscription plan")

// Стоимость планов в минимальных единицах валюты.
const (
	AmountLifetime = 49900
	AmountPremium  = 99900

	Currency = "INR"
)

// PremiumDays срок действия годовой подписки в днях.
const PremiumDays = 365

type Repository interface {
	CreateSubscription(ctx context.Context, sub models.Subscription) (int, error)
	FindSubscriptionByPaymentID(ctx context.Context, paymentID string) (*models.Subscription, error)
	FindActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	ExpireOverdueSubscriptions(ctx context.Context, userUID string, now time.Time) (int, error)
}

// Ledger инкапсулирует бизнес-логику подписок поверх хранилища.
type Ledger struct {
	repo Repository
	log  *slog.Logger
}

func New(repo Repository, log *slog.Logger) *Ledger {
	return &Ledger{
		repo: repo,
		log:  log,
	}
}

// PlanAmount возвращает стоимость плана в минимальных единицах валюты.
func PlanAmount(plan string) (int64, error) {
	switch plan {
	case models.PlanLifetime:
		return AmountLifetime, nil
	case models.PlanPremium:
		return AmountPremium, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
}

// Activate создаёт подписку по подтверждённому платежу. PaymentID служит
// ключом идемпотентности: повторная активация того же платежа возвращает
// уже существующую подпись и признак alreadyActivated без создания новой.
func (l *Ledger) Activate(ctx context.Context, userUID, plan, paymentID string, now time.Time) (*models.Subscription, bool, error) {
	existing, err := l.repo.FindSubscriptionByPaymentID(ctx, paymentID)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check payment: %w", err)
	}

	var expiresAt *time.Time
	switch plan {
	case models.PlanLifetime:
		expiresAt = nil
	case models.PlanPremium:
		t := now.AddDate(0, 0, PremiumDays)
		expiresAt = &t
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}

	sub := models.Subscription{
		UserUID:   userUID,
		Plan:      plan,
		PaidAt:    now,
		ExpiresAt: expiresAt,
		PaymentID: paymentID,
		Status:    models.SubscriptionActive,
	}
	id, err := l.repo.CreateSubscription(ctx, sub)
	if err != nil {
		// Конкурентная активация того же платежа: проигравший вставку
		// возвращает подписку победителя как уже активированную
		if errors.Is(err, repository.ErrDuplicatePayment) {
			existing, findErr := l.repo.FindSubscriptionByPaymentID(ctx, paymentID)
			if findErr != nil {
				return nil, false, fmt.Errorf("failed to load subscription for payment: %w", findErr)
			}
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("failed to create subscription: %w", err)
	}
	sub.ID = id

	l.log.Info("activated subscription",
		slog.String("user_uid", userUID),
		slog.String("plan", plan),
		slog.Int("id", id))
	return &sub, false, nil
}

// IsEntitled сообщает, есть ли у пользователя активная подписка на момент
// now, и возвращает её план. Перед чтением просроченные подписки лениво
// переводятся в expired.
func (l *Ledger) IsEntitled(ctx context.Context, userUID string, now time.Time) (bool, string, error) {
	expired, err := l.repo.ExpireOverdueSubscriptions(ctx, userUID, now)
	if err != nil {
		return false, "", fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	if expired > 0 {
		l.log.Info("expired overdue subscriptions",
			slog.String("user_uid", userUID), slog.Int("count", expired))
	}

	sub, err := l.repo.FindActiveSubscription(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("failed to find active subscription: %w", err)
	}
	return true, sub.Plan, nil
}
