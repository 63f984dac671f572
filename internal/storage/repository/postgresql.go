// Package repository реализует хранилище данных на основе PostgreSQL
// для пользователей, подписок и признаний. Предоставляет методы создания
// и чтения записей, атомарного списания бесплатной квоты и перевода
// сообщений по статусам доставки.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrFreeQuotaSpent возвращается, когда бесплатное сообщение пользователя
// уже израсходовано и транзакция списания квоты откатилась.
var ErrFreeQuotaSpent = errors.New("free message already spent")

// ErrNotFound возвращается, когда запрошенная запись отсутствует
// или не принадлежит вызывающему.
var ErrNotFound = errors.New("record not found")

// ErrDuplicatePayment возвращается при попытке создать вторую подписку
// по тому же payment_id.
var ErrDuplicatePayment = errors.New("payment already recorded")

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с пользователями, подписками и признаниями.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}
