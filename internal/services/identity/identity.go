// Package identity реализует вход пользователя через внешнего провайдера
// и выпуск JWT-токена.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unsaidapp/unsaid-backend/internal/lib/jwt"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (string, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

type SubscriptionLedger interface {
	IsEntitled(ctx context.Context, userUID string, now time.Time) (bool, string, error)
}

// Service создаёт пользователей при первом входе и выпускает токены.
type Service struct {
	repo   UserRepository
	ledger SubscriptionLedger
	maker  jwt.Maker
	log    *slog.Logger
}

func New(repo UserRepository, ledger SubscriptionLedger, maker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		maker:  maker,
		log:    log,
	}
}

// AuthResult результат входа: токен, пользователь и признак активной
// подписки на момент входа.
type AuthResult struct {
	Token           string
	User            *models.User
	HasSubscription bool
}

// Authenticate находит пользователя по идентификатору внешнего провайдера,
// создавая его при первом входе, и выпускает JWT-токен. Новый пользователь
// получает одно бесплатное сообщение.
func (s *Service) Authenticate(ctx context.Context, req models.GoogleAuthRequest) (*AuthResult, error) {
	user, err := s.repo.GetUserByGoogleID(ctx, req.GoogleID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		uid, err := s.repo.CreateUser(ctx, models.User{
			GoogleID:       req.GoogleID,
			Email:          req.Email,
			Name:           req.Name,
			ProfilePicture: req.ProfilePicture,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.log.Info("created new user", slog.String("user_uid", uid))
		user, err = s.repo.GetUser(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("failed to read created user: %w", err)
		}
	}

	token, err := s.maker.GenerateToken(user.UID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	entitled, _, err := s.ledger.IsEntitled(ctx, user.UID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}

	return &AuthResult{
		Token:           token,
		User:            user,
		HasSubscription: entitled,
	}, nil
}
