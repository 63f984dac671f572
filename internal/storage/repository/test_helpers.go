package repository

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/unsaidapp/unsaid-backend/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его UID
func (f *TestDataFactory) CreateUser(t *testing.T, googleID, email, name string) string {
	var uid string
	err := f.storage.DB.QueryRow(`INSERT INTO users (google_id, email, name)
		VALUES ($1, $2, $3) RETURNING uid`,
		googleID, email, name).Scan(&uid)
	require.NoError(t, err)
	return uid
}

// CreateUserWithQuota создает пользователя с заданным остатком бесплатных сообщений
func (f *TestDataFactory) CreateUserWithQuota(t *testing.T, googleID, email, name string, quota int, isDeveloper bool) string {
	var uid string
	err := f.storage.DB.QueryRow(`INSERT INTO users (google_id, email, name, free_messages_remaining, is_developer)
		VALUES ($1, $2, $3, $4, $5) RETURNING uid`,
		googleID, email, name, quota, isDeveloper).Scan(&uid)
	require.NoError(t, err)
	return uid
}

// CreateSubscription создает тестовую подписку и возвращает её ID
func (f *TestDataFactory) CreateSubscription(t *testing.T, userUID, plan string,
	paidAt time.Time, expiresAt *time.Time, paymentID, status string) int {
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions (user_uid, plan, paid_at, expires_at, payment_id, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		userUID, plan, paidAt, expiresAt, paymentID, status).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateConfession создает тестовое признание и возвращает submission_id
func (f *TestDataFactory) CreateConfession(t *testing.T, userUID, contactType, status string) string {
	submissionID := uuid.New().String()
	_, err := f.storage.DB.Exec(`INSERT INTO confessions
		(user_uid, submission_id, message, recipient_name, recipient_contact, contact_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		userUID, submissionID, "test message body", "Alex", "alex@example.com", contactType, status)
	require.NoError(t, err)
	return submissionID
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// VerifyConfessionStatus проверяет статус признания в БД
func (v *TestVerification) VerifyConfessionStatus(t *testing.T, submissionID, expectedStatus string) {
	var status string
	err := v.storage.DB.QueryRow("SELECT status FROM confessions WHERE submission_id = $1", submissionID).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, status)
}

// VerifyFreeQuota проверяет остаток бесплатных сообщений пользователя
func (v *TestVerification) VerifyFreeQuota(t *testing.T, userUID string, expected int) {
	var remaining int
	err := v.storage.DB.QueryRow("SELECT free_messages_remaining FROM users WHERE uid = $1", userUID).Scan(&remaining)
	require.NoError(t, err)
	require.Equal(t, expected, remaining)
}

// VerifySubscriptionStatus проверяет статус подписки в БД
func (v *TestVerification) VerifySubscriptionStatus(t *testing.T, subscriptionID int, expectedStatus string) {
	var status string
	err := v.storage.DB.QueryRow("SELECT status FROM subscriptions WHERE id = $1", subscriptionID).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, expectedStatus, status)
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort(nat.Port("5432/tcp")),
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(3*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			err = storage.DB.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	// Создаем таблицы
	_, err = storage.DB.Exec(`
        DROP TABLE IF EXISTS confessions CASCADE;
        DROP TABLE IF EXISTS subscriptions CASCADE;
        DROP TABLE IF EXISTS users CASCADE;

        CREATE EXTENSION IF NOT EXISTS "pgcrypto";

        CREATE TABLE users (
            uid UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            google_id TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            profile_picture TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            free_messages_remaining INT NOT NULL DEFAULT 1,
            free_message_device_id TEXT,
            is_developer BOOLEAN NOT NULL DEFAULT false
        );

        CREATE TABLE subscriptions (
            id SERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid),
            plan TEXT NOT NULL,
            paid_at TIMESTAMPTZ NOT NULL,
            expires_at TIMESTAMPTZ,
            payment_id TEXT NOT NULL UNIQUE,
            status TEXT NOT NULL DEFAULT 'active'
        );

        CREATE TABLE confessions (
            id BIGSERIAL PRIMARY KEY,
            user_uid UUID NOT NULL REFERENCES users(uid),
            submission_id TEXT NOT NULL UNIQUE,
            message TEXT NOT NULL,
            recipient_name TEXT NOT NULL,
            recipient_contact TEXT NOT NULL,
            contact_type TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            revealed BOOLEAN NOT NULL DEFAULT false,
            device_id TEXT,
            is_free BOOLEAN NOT NULL DEFAULT false
        );
    `)
	require.NoError(t, err, "failed to create tables")

	cleanup := func() {
		_ = storage.DB.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return storage, cleanup
}

// testConfession возвращает стандартное тестовое признание
func testConfession(userUID string) models.Confession {
	return models.Confession{
		UserUID:          userUID,
		SubmissionID:     uuid.New().String(),
		Message:          "something left unsaid for too long",
		RecipientName:    "Alex",
		RecipientContact: "alex@example.com",
		ContactType:      models.ContactEmail,
		Status:           models.ConfessionPending,
	}
}
