// Package confession реализует приём анонимных сообщений, постановку задач
// доставки, выдачу истории и статуса отправок.
package confession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/unsaidapp/unsaid-backend/internal/lib/sl"
	"github.com/unsaidapp/unsaid-backend/internal/metrics"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/rabbitmq"
	"github.com/unsaidapp/unsaid-backend/internal/services/entitlement"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

// ErrNotAllowed возвращается при попытке включить режим разработчика
// пользователем вне списка допуска.
var ErrNotAllowed = errors.New("developer mode is not allowed for this user")

// statusCacheTTL время жизни кеша статуса отправки. Короткое: статус
// меняется воркером доставки, и устаревший pending терпим считаные секунды.
const statusCacheTTL = 30 * time.Second

type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	SetDeveloper(ctx context.Context, userUID string) error
	CreateConfession(ctx context.Context, c models.Confession) (int64, error)
	CreateFreeConfession(ctx context.Context, c models.Confession) (int64, error)
	ListConfessionsByUser(ctx context.Context, userUID string) ([]*models.Confession, error)
	GetConfessionBySubmissionID(ctx context.Context, userUID, submissionID string) (*models.Confession, error)
}

type Entitlement interface {
	Authorize(ctx context.Context, user *models.User, now time.Time) (*entitlement.Decision, error)
}

type SubscriptionLedger interface {
	IsEntitled(ctx context.Context, userUID string, now time.Time) (bool, string, error)
}

type Publisher interface {
	Publish(routingKey string, message any) error
}

type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service связывает проверку права на отправку, хранилище и очередь
// доставки.
type Service struct {
	repo        Repository
	entitlement Entitlement
	ledger      SubscriptionLedger
	publisher   Publisher
	cache       Cache
	allowlist   []string
	log         *slog.Logger
}

func New(repo Repository, ent Entitlement, ledger SubscriptionLedger,
	publisher Publisher, cache Cache, allowlist []string, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		entitlement: ent,
		ledger:      ledger,
		publisher:   publisher,
		cache:       cache,
		allowlist:   allowlist,
		log:         log,
	}
}

// SubmitResult результат приёма сообщения.
type SubmitResult struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
	QuotaClass   string `json:"quota_class"`
}

// Submit принимает сообщение от пользователя. Право на отправку проверяется
// в порядке: разработчик, бесплатная квота, подписка. Бесплатная отправка
// списывает квоту транзакцией хранилища; если квоту успела списать
// конкурентная отправка, право перепроверяется по подписке. Запись
// сохраняется до публикации задачи: сбой брокера оставляет сообщение
// в pending, но не теряет его.
func (s *Service) Submit(ctx context.Context, userUID string, req models.DummySubmission) (*SubmitResult, error) {
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	decision, err := s.entitlement.Authorize(ctx, user, time.Now())
	if err != nil {
		if errors.Is(err, entitlement.ErrNotEntitled) {
			metrics.SubmissionsDeniedTotal.Inc()
		}
		return nil, err
	}

	c := models.Confession{
		UserUID:          userUID,
		SubmissionID:     uuid.New().String(),
		Message:          req.Message,
		RecipientName:    req.RecipientName,
		RecipientContact: req.RecipientContact,
		ContactType:      req.ContactType,
		Status:           models.ConfessionPending,
		DeviceID:         req.DeviceID,
	}

	quotaClass := decision.Class
	switch decision.Class {
	case entitlement.ClassFree:
		c.IsFree = true
		_, err = s.repo.CreateFreeConfession(ctx, c)
		if err != nil && errors.Is(err, repository.ErrFreeQuotaSpent) {
			entitled, _, subErr := s.ledger.IsEntitled(ctx, userUID, time.Now())
			if subErr != nil {
				return nil, fmt.Errorf("failed to check subscription: %w", subErr)
			}
			if !entitled {
				metrics.SubmissionsDeniedTotal.Inc()
				return nil, entitlement.ErrNotEntitled
			}
			quotaClass = entitlement.ClassSubscription
			c.IsFree = false
			_, err = s.repo.CreateConfession(ctx, c)
		}
	default:
		_, err = s.repo.CreateConfession(ctx, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save confession: %w", err)
	}

	metrics.SubmissionsTotal.WithLabelValues(quotaClass).Inc()
	s.log.Info("accepted confession",
		slog.String("submission_id", c.SubmissionID),
		slog.String("quota_class", quotaClass))

	task := models.DeliveryTask{
		SubmissionID: c.SubmissionID,
		ContactType:  c.ContactType,
		Attempt:      1,
	}
	if err := s.publisher.Publish(routingKeyFor(c.ContactType), task); err != nil {
		s.log.Error("failed to publish delivery task",
			slog.String("submission_id", c.SubmissionID), sl.Err(err))
	}

	return &SubmitResult{
		SubmissionID: c.SubmissionID,
		Status:       c.Status,
		QuotaClass:   quotaClass,
	}, nil
}

// List возвращает историю сообщений пользователя, новые первыми.
func (s *Service) List(ctx context.Context, userUID string) ([]models.ConfessionSummary, error) {
	items, err := s.repo.ListConfessionsByUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("failed to list confessions: %w", err)
	}

	result := make([]models.ConfessionSummary, 0, len(items))
	for _, c := range items {
		result = append(result, summarize(c))
	}
	return result, nil
}

// Status возвращает состояние одной отправки пользователя. Результат
// кешируется на короткое время.
func (s *Service) Status(ctx context.Context, userUID, submissionID string) (*models.ConfessionSummary, error) {
	var cached models.ConfessionSummary
	cacheKey := statusCacheKey(submissionID)
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read status cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found && err == nil {
		return &cached, nil
	}

	c, err := s.repo.GetConfessionBySubmissionID(ctx, userUID, submissionID)
	if err != nil {
		return nil, err
	}
	summary := summarize(c)

	if err := s.cache.Set(cacheKey, summary, statusCacheTTL); err != nil {
		s.log.Warn("failed to cache status", slog.String("key", cacheKey), sl.Err(err))
	}
	return &summary, nil
}

// UserStatus возвращает снимок состояния пользователя: квоту, подписку
// и возможность отправить сообщение.
func (s *Service) UserStatus(ctx context.Context, userUID string) (*models.UserStatus, error) {
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	entitled, plan, err := s.ledger.IsEntitled(ctx, userUID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}

	status := &models.UserStatus{
		UserUID:               user.UID,
		Email:                 user.Email,
		Name:                  user.Name,
		IsDeveloper:           user.IsDeveloper,
		FreeMessagesRemaining: user.FreeMessagesRemaining,
		HasSubscription:       entitled,
		CanSendMessage:        user.IsDeveloper || user.FreeMessagesRemaining > 0 || entitled,
	}
	if entitled {
		status.SubscriptionPlan = &plan
	}
	return status, nil
}

// EnableDeveloper включает пользователю режим разработчика. Доступно только
// адресам из списка допуска в конфигурации.
func (s *Service) EnableDeveloper(ctx context.Context, userUID string) error {
	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	allowed := false
	for _, email := range s.allowlist {
		if email == user.Email {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrNotAllowed
	}

	if err := s.repo.SetDeveloper(ctx, userUID); err != nil {
		return fmt.Errorf("failed to set developer flag: %w", err)
	}
	s.log.Info("enabled developer mode", slog.String("user_uid", userUID))
	return nil
}

func summarize(c *models.Confession) models.ConfessionSummary {
	return models.ConfessionSummary{
		SubmissionID:     c.SubmissionID,
		Message:          c.Message,
		RecipientName:    c.RecipientName,
		RecipientContact: c.RecipientContact,
		ContactType:      c.ContactType,
		Status:           c.Status,
		CreatedAt:        c.CreatedAt,
		Revealed:         c.Revealed,
	}
}

func statusCacheKey(submissionID string) string {
	return fmt.Sprintf("confession:status:%s", submissionID)
}

func routingKeyFor(contactType string) string {
	if contactType == models.ContactWhatsapp {
		return rabbitmq.RoutingKeyWhatsapp
	}
	return rabbitmq.RoutingKeyEmail
}
