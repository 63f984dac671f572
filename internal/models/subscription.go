package models

import "time"

// Планы подписки. Закрытый набор: lifetime — бессрочная, premium — на год.
const (
	PlanLifetime = "lifetime"
	PlanPremium  = "premium"
)

// Статусы подписки.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription представляет оплаченную подписку пользователя.
// Поле ExpiresAt может быть nil — это означает отсутствие даты окончания
// (подписка бессрочная). PaymentID уникален: один платёж порождает
// не более одной подписки за всё время жизни системы.
type Subscription struct {
	ID        int        // Внутренний идентификатор записи
	UserUID   string     // Владелец подписки
	Plan      string     // План: lifetime или premium
	PaidAt    time.Time  // Момент активации
	ExpiresAt *time.Time // Дата окончания, nil для lifetime
	PaymentID string     // Внешний идентификатор платежа (уникальный)
	Status    string     // active, cancelled или expired
}

// CreateOrderRequest используется для приёма запроса на создание
// платёжного ордера.
type CreateOrderRequest struct {
	Plan string `json:"plan" validate:"required,oneof=lifetime premium"`
}

// PaymentConfirmation используется для приёма подтверждения оплаты
// от клиента после прохождения платежа.
type PaymentConfirmation struct {
	PaymentID string `json:"payment_id" validate:"required"`
	OrderID   string `json:"order_id" validate:"required"`
	Plan      string `json:"plan" validate:"required,oneof=lifetime premium"`
}
