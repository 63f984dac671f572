package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unsaidapp/unsaid-backend/internal/models"
)

// CreateUser сохраняет нового пользователя и возвращает его UID.
// Квота бесплатных сообщений выставляется в 1 схемой по умолчанию.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO users (google_id, email, name, profile_picture)
			  VALUES ($1, $2, $3, $4)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.GoogleID, user.Email, user.Name, user.ProfilePicture).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUserByGoogleID возвращает пользователя по идентификатору внешнего
// провайдера. Если пользователь не найден, возвращает ErrNotFound.
func (s *Storage) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	const op = "storage.GetUserByGoogleID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, google_id, email, name, profile_picture, created_at,
			      free_messages_remaining, free_message_device_id, is_developer
			  FROM users
			  WHERE google_id = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, googleID), op)
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT uid, google_id, email, name, profile_picture, created_at,
			      free_messages_remaining, free_message_device_id, is_developer
			  FROM users
			  WHERE uid = $1`
	return s.scanUser(s.DB.QueryRowContext(ctx, query, userUID), op)
}

// SetDeveloper включает пользователю режим разработчика.
func (s *Storage) SetDeveloper(ctx context.Context, userUID string) error {
	const op = "storage.SetDeveloper"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET is_developer = true
			  WHERE uid = $1`
	res, err := s.DB.ExecContext(ctx, query, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (s *Storage) scanUser(row *sql.Row, op string) (*models.User, error) {
	u := &models.User{}
	var profilePicture, freeMessageDeviceID sql.NullString
	if err := row.Scan(&u.UID, &u.GoogleID, &u.Email, &u.Name, &profilePicture,
		&u.CreatedAt, &u.FreeMessagesRemaining, &freeMessageDeviceID, &u.IsDeveloper); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if profilePicture.Valid {
		u.ProfilePicture = &profilePicture.String
	}
	if freeMessageDeviceID.Valid {
		u.FreeMessageDeviceID = &freeMessageDeviceID.String
	}
	return u, nil
}
