// Package whatsapp реализует клиент WhatsApp Cloud API для отправки
// текстовых сообщений. Ошибки API возвращаются явно: транспорт не
// маскирует неуспешную доставку под успех.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/unsaidapp/unsaid-backend/internal/config"
)

// Client инкапсулирует доступ к WhatsApp Cloud API.
type Client struct {
	accessToken   string
	phoneNumberID string
	apiVersion    string
	baseURL       string
	httpClient    *http.Client
}

// NewClient создаёт новый клиент WhatsApp Cloud API.
func NewClient(cfg config.WhatsApp) *Client {
	return &Client{
		accessToken:   cfg.WhatsAppAccessToken,
		phoneNumberID: cfg.WhatsAppPhoneNumberID,
		apiVersion:    cfg.WhatsAppAPIVersion,
		baseURL:       "https://graph.facebook.com",
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SendText отправляет текстовое сообщение на номер to.
func (c *Client) SendText(ctx context.Context, to string, text string) error {
	const op = "whatsapp.SendText"

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)

	reqBody := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"body": text,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: status=%d body=%s", op, resp.StatusCode, string(respBody))
	}
	return nil
}
