// Package enable реализует HTTP-обработчик включения режима разработчика.
//
// Режим доступен только пользователям из списка допуска в конфигурации,
// остальным возвращается 403 Forbidden.
package enable

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/unsaidapp/unsaid-backend/internal/http/middlewarectx"
	"github.com/unsaidapp/unsaid-backend/internal/http/response"
	"github.com/unsaidapp/unsaid-backend/internal/lib/sl"
	"github.com/unsaidapp/unsaid-backend/internal/services/confession"
)

// Service описывает интерфейс бизнес-логики режима разработчика.
type Service interface {
	EnableDeveloper(ctx context.Context, userUID string) error
}

// Handler управляет HTTP-запросами на включение режима разработчика.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Включить режим разработчика
// @Description Включает пользователю из списка допуска отправку без списания квоты.
// @Tags Dev
// @Produce  json
// @Success 200 {object} map[string]any "Режим включён"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Пользователь вне списка допуска"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при включении режима"
// @Router /dev/enable [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dev.enable"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFromContext(r.Context())
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := h.service.EnableDeveloper(r.Context(), userUID); err != nil {
		if errors.Is(err, confession.ErrNotAllowed) {
			log.Info("developer mode denied", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("developer mode is not allowed"))
			return
		}
		log.Error("failed to enable developer mode", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not enable developer mode"))
		return
	}

	log.Info("developer mode enabled", slog.String("user_uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"is_developer": true,
	}))
}
