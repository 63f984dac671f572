// Package delivery реализует воркер доставки: читает задачи из очереди,
// отправляет сообщение по нужному транспорту и ведёт учёт повторных
// попыток. Исчерпавшие лимит попыток задачи уходят в мёртвую очередь.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unsaidapp/unsaid-backend/internal/config"
	"github.com/unsaidapp/unsaid-backend/internal/lib/sl"
	"github.com/unsaidapp/unsaid-backend/internal/lib/smtp"
	"github.com/unsaidapp/unsaid-backend/internal/metrics"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/rabbitmq"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

const emailSubject = "Someone left you an anonymous message"

type Repository interface {
	GetConfessionForDelivery(ctx context.Context, submissionID string) (*models.Confession, error)
	MarkConfessionSent(ctx context.Context, submissionID string) (int, error)
}

type WhatsappSender interface {
	SendText(ctx context.Context, to string, text string) error
}

type Publisher interface {
	Publish(routingKey string, message any) error
}

type Cache interface {
	Invalidate(key string) error
}

// Service обрабатывает задачи доставки из очереди.
type Service struct {
	repo      Repository
	transport smtp.TransportInterface
	whatsapp  WhatsappSender
	publisher Publisher
	cache     Cache
	cfg       config.Delivery
	log       *slog.Logger
}

func New(repo Repository, transport smtp.TransportInterface, whatsapp WhatsappSender,
	publisher Publisher, cache Cache, cfg config.Delivery, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		transport: transport,
		whatsapp:  whatsapp,
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		log:       log,
	}
}

// HandleDeliveryTask обрабатывает одну задачу доставки. Возврат nil
// подтверждает сообщение в очереди: неуспешная попытка тоже подтверждается,
// потому что повтор публикуется отдельной задачей со счётчиком attempt.
// Ошибку возвращают только преходящие сбои (загрузка или отметка отправки),
// для них потребитель вернёт сообщение в очередь.
func (s *Service) HandleDeliveryTask(body []byte) error {
	var task models.DeliveryTask
	if err := json.Unmarshal(body, &task); err != nil {
		// Нечитаемое тело подтверждается и отбрасывается: возврат его
		// в очередь означал бы бесконечную передоставку, а счётчик
		// попыток живёт внутри тела, которое не удалось разобрать.
		s.log.Error("dropping malformed delivery task", sl.Err(err))
		return nil
	}

	log := s.log.With(slog.String("submission_id", task.SubmissionID),
		slog.Int("attempt", task.Attempt))

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()

	c, err := s.repo.GetConfessionForDelivery(ctx, task.SubmissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("delivery task references unknown submission, dropping")
			return nil
		}
		return fmt.Errorf("failed to load confession: %w", err)
	}
	if c.Status != models.ConfessionPending {
		log.Info("confession already processed, skipping",
			slog.String("status", c.Status))
		return nil
	}

	if err := s.send(ctx, c); err != nil {
		log.Error("delivery attempt failed", sl.Err(err))
		metrics.DeliveriesTotal.WithLabelValues(c.ContactType, "failure").Inc()
		s.requeue(task, log)
		return nil
	}

	if _, err := s.repo.MarkConfessionSent(ctx, task.SubmissionID); err != nil {
		return fmt.Errorf("failed to mark confession sent: %w", err)
	}
	if err := s.cache.Invalidate(statusCacheKey(task.SubmissionID)); err != nil {
		log.Warn("failed to invalidate status cache", sl.Err(err))
	}

	metrics.DeliveriesTotal.WithLabelValues(c.ContactType, "success").Inc()
	log.Info("delivered confession", slog.String("contact_type", c.ContactType))
	return nil
}

// requeue публикует повторную задачу с увеличенным счётчиком попыток
// либо отправляет задачу в мёртвую очередь по исчерпанию лимита.
func (s *Service) requeue(task models.DeliveryTask, log *slog.Logger) {
	if task.Attempt >= s.cfg.MaxAttempts {
		if err := s.publisher.Publish(rabbitmq.RoutingKeyDead, task); err != nil {
			log.Error("failed to dead-letter delivery task", sl.Err(err))
			return
		}
		metrics.DeadLetteredTotal.Inc()
		log.Warn("delivery attempts exhausted, task dead-lettered")
		return
	}

	retry := models.DeliveryTask{
		SubmissionID: task.SubmissionID,
		ContactType:  task.ContactType,
		Attempt:      task.Attempt + 1,
	}
	if err := s.publisher.Publish(routingKeyFor(task.ContactType), retry); err != nil {
		log.Error("failed to republish delivery task", sl.Err(err))
	}
}

func (s *Service) send(ctx context.Context, c *models.Confession) error {
	switch c.ContactType {
	case models.ContactWhatsapp:
		return s.whatsapp.SendText(ctx, c.RecipientContact, whatsappText(c))
	default:
		return s.sendEmail(ctx, []string{c.RecipientContact}, emailSubject, emailBody(c))
	}
}

func emailBody(c *models.Confession) string {
	return fmt.Sprintf("Hi %s!\n\nSomeone has something to tell you, anonymously:\n\n%s\n",
		c.RecipientName, c.Message)
}

func whatsappText(c *models.Confession) string {
	return fmt.Sprintf("Hi %s! Someone left you an anonymous message:\n\n%s",
		c.RecipientName, c.Message)
}

func (s *Service) sendEmail(ctx context.Context, to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect(ctx)
	if err != nil {
		s.log.Error("Failed to connect to SMTP server", "error", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("Failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), "error", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("Failed to set RCPT TO", "recipient", addr, "error", sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("Failed to get Data writer", "error", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("Failed to write email body", "error", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("Failed to close Data writer", "error", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("Failed to quit SMTP client", "error", sl.Err(err))
		return err
	}
	return nil
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
