// Package entitlement определяет, за чей счёт пользователь может отправить
// сообщение. Порядок проверки фиксированный: режим разработчика, затем
// бесплатная квота, затем активная подписка.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unsaidapp/unsaid-backend/internal/models"
)

// ErrNotEntitled возвращается, когда ни один источник права на отправку
// не доступен пользователю.
var ErrNotEntitled = errors.New("user is not entitled to send messages")

// Классы квоты в порядке приоритета.
const (
	ClassDeveloper    = "developer"
	ClassFree         = "free"
	ClassSubscription = "subscription"
)

// Decision результат проверки права на отправку: класс квоты и план
// подписки, если право дала подписка.
type Decision struct {
	Class string
	Plan  string
}

type SubscriptionLedger interface {
	IsEntitled(ctx context.Context, userUID string, now time.Time) (bool, string, error)
}

// Service проверяет право пользователя на отправку сообщения.
type Service struct {
	ledger SubscriptionLedger
}

func New(ledger SubscriptionLedger) *Service {
	return &Service{ledger: ledger}
}

// Authorize возвращает класс квоты, за счёт которого пользователь может
// отправить сообщение. Решение не списывает квоту: фактическое списание
// бесплатного сообщения выполняется транзакцией хранилища, и проигравшая
// гонку отправка повторно проходит через подписку.
func (s *Service) Authorize(ctx context.Context, user *models.User, now time.Time) (*Decision, error) {
	if user.IsDeveloper {
		return &Decision{Class: ClassDeveloper}, nil
	}
	if user.FreeMessagesRemaining > 0 {
		return &Decision{Class: ClassFree}, nil
	}

	entitled, plan, err := s.ledger.IsEntitled(ctx, user.UID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}
	if entitled {
		return &Decision{Class: ClassSubscription, Plan: plan}, nil
	}
	return nil, ErrNotEntitled
}
