// Package models содержит доменные структуры сервиса: пользователь,
// подписка, признание (анонимное сообщение), а также вспомогательные типы
// для приёма данных из внешних источников (JSON-запросы, очередь доставки).
package models

import "time"

// User представляет пользователя, созданного при первом входе через
// внешнего провайдера идентификации.
type User struct {
	UID                   string     // Уникальный идентификатор пользователя
	GoogleID              string     // Идентификатор во внешнем провайдере (уникальный)
	Email                 string     // Электронная почта (уникальная)
	Name                  string     // Отображаемое имя
	ProfilePicture        *string    // Ссылка на аватар, может отсутствовать
	CreatedAt             time.Time  // Дата создания записи
	FreeMessagesRemaining int        // Остаток бесплатных сообщений, стартует с 1
	FreeMessageDeviceID   *string    // Устройство, израсходовавшее бесплатное сообщение
	IsDeveloper           bool       // Флаг разработчика: сообщения без списания квоты
}

// GoogleAuthRequest используется для приёма данных аутентификации
// из JSON-запроса.
type GoogleAuthRequest struct {
	GoogleID       string  `json:"google_id" validate:"required"`
	Email          string  `json:"email" validate:"required,email"`
	Name           string  `json:"name" validate:"required"`
	ProfilePicture *string `json:"profile_picture"`
}

// UserStatus снимок состояния пользователя для клиента: квота, подписка,
// возможность отправить сообщение.
type UserStatus struct {
	UserUID               string  `json:"user_uid"`
	Email                 string  `json:"email"`
	Name                  string  `json:"name"`
	IsDeveloper           bool    `json:"is_developer"`
	FreeMessagesRemaining int     `json:"free_messages_remaining"`
	HasSubscription       bool    `json:"has_subscription"`
	SubscriptionPlan      *string `json:"subscription_plan,omitempty"`
	CanSendMessage        bool    `json:"can_send_message"`
}
