package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unsaidapp/unsaid-backend/internal/models"
)

// CreateConfession вставляет новое признание и возвращает его внутренний ID.
// Используется для отправок в режиме разработчика и по подписке.
func (s *Storage) CreateConfession(ctx context.Context, c models.Confession) (int64, error) {
	const op = "storage.CreateConfession"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO confessions (user_uid, submission_id, message, recipient_name,
			      recipient_contact, contact_type, status, device_id, is_free)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		c.UserUID, c.SubmissionID, c.Message, c.RecipientName, c.RecipientContact,
		c.ContactType, c.Status, c.DeviceID, c.IsFree).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// CreateFreeConfession списывает бесплатное сообщение пользователя и
// вставляет признание в одной транзакции. Списание выполняется условным
// UPDATE по квоте: из двух конкурентных отправок выиграет ровно одна,
// проигравшая получает ErrFreeQuotaSpent, и никакое частичное состояние
// не сохраняется.
func (s *Storage) CreateFreeConfession(ctx context.Context, c models.Confession) (int64, error) {
	const op = "storage.CreateFreeConfession"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	quotaQuery := `UPDATE users
				   SET free_messages_remaining = 0, free_message_device_id = $1
				   WHERE uid = $2
				     AND free_messages_remaining > 0`
	res, err := tx.ExecContext(ctx, quotaQuery, c.DeviceID, c.UserUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrFreeQuotaSpent)
	}

	insertQuery := `INSERT INTO confessions (user_uid, submission_id, message, recipient_name,
			            recipient_contact, contact_type, status, device_id, is_free)
				    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
				    RETURNING id`
	var newID int64
	if err = tx.QueryRowContext(ctx, insertQuery,
		c.UserUID, c.SubmissionID, c.Message, c.RecipientName, c.RecipientContact,
		c.ContactType, c.Status, c.DeviceID).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListConfessionsByUser возвращает признания пользователя, новые первыми.
func (s *Storage) ListConfessionsByUser(ctx context.Context, userUID string) ([]*models.Confession, error) {
	const op = "storage.ListConfessionsByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, submission_id, message, recipient_name, recipient_contact,
			      contact_type, status, created_at, revealed, device_id, is_free
			  FROM confessions
			  WHERE user_uid = $1
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Confession
	for rows.Next() {
		item, err := scanConfessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetConfessionBySubmissionID возвращает признание пользователя по внешнему
// идентификатору отправки. Чужая или отсутствующая запись — ErrNotFound.
func (s *Storage) GetConfessionBySubmissionID(ctx context.Context, userUID, submissionID string) (*models.Confession, error) {
	const op = "storage.GetConfessionBySubmissionID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, submission_id, message, recipient_name, recipient_contact,
			      contact_type, status, created_at, revealed, device_id, is_free
			  FROM confessions
			  WHERE user_uid = $1
			    AND submission_id = $2`
	row := s.DB.QueryRowContext(ctx, query, userUID, submissionID)
	c, err := scanConfessionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// GetConfessionForDelivery возвращает признание по идентификатору отправки
// без привязки к пользователю. Используется воркером доставки.
func (s *Storage) GetConfessionForDelivery(ctx context.Context, submissionID string) (*models.Confession, error) {
	const op = "storage.GetConfessionForDelivery"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, submission_id, message, recipient_name, recipient_contact,
			      contact_type, status, created_at, revealed, device_id, is_free
			  FROM confessions
			  WHERE submission_id = $1`
	row := s.DB.QueryRowContext(ctx, query, submissionID)
	c, err := scanConfessionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// MarkConfessionSent переводит признание из pending в sent и возвращает
// число изменённых строк. Условие по статусу делает переход идемпотентным
// при повторной доставке той же задачи.
func (s *Storage) MarkConfessionSent(ctx context.Context, submissionID string) (int, error) {
	const op = "storage.MarkConfessionSent"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE confessions
			  SET status = $1
			  WHERE submission_id = $2
			    AND status = $3`
	res, err := s.DB.ExecContext(ctx, query,
		models.ConfessionSent, submissionID, models.ConfessionPending)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfessionRow(row rowScanner) (*models.Confession, error) {
	c := &models.Confession{}
	var deviceID sql.NullString
	if err := row.Scan(&c.ID, &c.UserUID, &c.SubmissionID, &c.Message, &c.RecipientName,
		&c.RecipientContact, &c.ContactType, &c.Status, &c.CreatedAt, &c.Revealed,
		&deviceID, &c.IsFree); err != nil {
		return nil, err
	}
	if deviceID.Valid {
		c.DeviceID = &deviceID.String
	}
	return c, nil
}
