// Package paymentprovider реализует клиент платёжного провайдера Razorpay
// для создания ордеров на оплату подписки.
package paymentprovider

// CreateOrderRequest — запрос на создание ордера. Amount в минорных
// единицах валюты (пайсах).
type CreateOrderRequest struct {
	Amount         int               `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// CreateOrderResponse — ответ провайдера на создание ордера.
type CreateOrderResponse struct {
	ID       string `json:"id"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// WebhookPayload — событие платёжного webhook. Notes несут метаданные,
// проставленные при создании ордера (user_uid, plan).
type WebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string            `json:"id"`
				OrderID string            `json:"order_id"`
				Status  string            `json:"status"`
				Amount  int               `json:"amount"`
				Notes   map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}
