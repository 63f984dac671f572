package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/unsaidapp/unsaid-backend/internal/models"
)

// CreateSubscription вставляет новую подписку и возвращает её ID.
// Уникальный индекс по payment_id гарантирует не более одной подписки
// на платёж; нарушение уникальности поднимается как ErrDuplicatePayment.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, plan, paid_at, expires_at, payment_id, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, sub.Plan, sub.PaidAt, sub.ExpiresAt, sub.PaymentID, sub.Status).Scan(&newID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%s: %w", op, ErrDuplicatePayment)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindSubscriptionByPaymentID возвращает подписку по внешнему идентификатору
// платежа. Если подписки нет, возвращает ErrNotFound.
func (s *Storage) FindSubscriptionByPaymentID(ctx context.Context, paymentID string) (*models.Subscription, error) {
	const op = "storage.FindSubscriptionByPaymentID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan, paid_at, expires_at, payment_id, status
			  FROM subscriptions
			  WHERE payment_id = $1`
	return s.scanSubscription(s.DB.QueryRowContext(ctx, query, paymentID), op)
}

// FindActiveSubscription возвращает самую свежую активную подписку
// пользователя. Если активной подписки нет, возвращает ErrNotFound.
func (s *Storage) FindActiveSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.FindActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, plan, paid_at, expires_at, payment_id, status
			  FROM subscriptions
			  WHERE user_uid = $1
			    AND status = $2
			  ORDER BY paid_at DESC
			  LIMIT 1`
	return s.scanSubscription(s.DB.QueryRowContext(ctx, query, userUID, models.SubscriptionActive), op)
}

// ExpireOverdueSubscriptions переводит просроченные активные подписки
// пользователя в статус expired и возвращает число изменённых строк.
// Одиночный UPDATE с условием по статусу и дате делает ленивое истечение
// идемпотентным: два конкурентных вызова не испортят друг друга.
func (s *Storage) ExpireOverdueSubscriptions(ctx context.Context, userUID string, now time.Time) (int, error) {
	const op = "storage.ExpireOverdueSubscriptions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1
			  WHERE user_uid = $2
			    AND status = $3
			    AND expires_at IS NOT NULL
			    AND expires_at < $4`
	res, err := s.DB.ExecContext(ctx, query,
		models.SubscriptionExpired, userUID, models.SubscriptionActive, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

func (s *Storage) scanSubscription(row *sql.Row, op string) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var expiresAt sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.Plan, &sub.PaidAt,
		&expiresAt, &sub.PaymentID, &sub.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if expiresAt.Valid {
		sub.ExpiresAt = &expiresAt.Time
	}
	return sub, nil
}
