package models

import "time"

// Типы контакта получателя.
const (
	ContactEmail    = "email"
	ContactWhatsapp = "whatsapp"
)

// Статусы жизненного цикла признания. Delivered объявлен для совместимости
// вперёд, диспетчер доставки его не выставляет.
const (
	ConfessionPending   = "pending"
	ConfessionSent      = "sent"
	ConfessionDelivered = "delivered"
)

// Confession представляет анонимное сообщение пользователя.
// SubmissionID — внешний непрозрачный идентификатор, по которому клиент
// запрашивает статус; внутренний ID наружу не отдаётся.
type Confession struct {
	ID               int64     // Внутренний идентификатор записи
	UserUID          string    // Отправитель
	SubmissionID     string    // Внешний идентификатор отправки (уникальный)
	Message          string    // Текст сообщения
	RecipientName    string    // Имя получателя
	RecipientContact string    // Адрес почты или номер WhatsApp
	ContactType      string    // email или whatsapp
	Status           string    // pending, sent или delivered
	CreatedAt        time.Time // Дата создания
	Revealed         bool      // Зарезервировано, логика не выставляет
	DeviceID         *string   // Устройство клиента, может отсутствовать
	IsFree           bool      // Израсходовано ли бесплатное сообщение
}

// DummySubmission используется для приёма данных отправки из JSON-запроса,
// прежде чем конвертировать их в Confession.
type DummySubmission struct {
	Message          string  `json:"message" validate:"required,min=10,max=2000"`
	RecipientName    string  `json:"recipient_name" validate:"required,min=2"`
	RecipientContact string  `json:"recipient_contact" validate:"required"`
	ContactType      string  `json:"contact_type" validate:"required,oneof=email whatsapp"`
	DeviceID         *string `json:"device_id"`
}

// ConfessionSummary — элемент списка сообщений пользователя.
type ConfessionSummary struct {
	SubmissionID     string    `json:"id"`
	Message          string    `json:"message"`
	RecipientName    string    `json:"recipient"`
	RecipientContact string    `json:"contact"`
	ContactType      string    `json:"contact_type"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	Revealed         bool      `json:"revealed"`
}

// DeliveryTask — сообщение очереди доставки. Attempt растёт при повторных
// публикациях, по исчерпанию лимита задача уходит в мёртвую очередь.
type DeliveryTask struct {
	SubmissionID string `json:"submission_id"`
	ContactType  string `json:"contact_type"`
	Attempt      int    `json:"attempt"`
}
