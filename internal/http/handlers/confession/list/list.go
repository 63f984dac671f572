// Package list реализует HTTP-обработчик списка сообщений пользователя.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/unsaidapp/unsaid-backend/internal/http/middlewarectx"
	"github.com/unsaidapp/unsaid-backend/internal/http/response"
	"github.com/unsaidapp/unsaid-backend/internal/lib/sl"
	"github.com/unsaidapp/unsaid-backend/internal/models"
)

// Service описывает интерфейс бизнес-логики выдачи истории сообщений.
type Service interface {
	List(ctx context.Context, userUID string) ([]models.ConfessionSummary, error)
}

// Handler управляет HTTP-запросами на получение истории сообщений.
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
// @Summary История сообщений
// @Description Возвращает сообщения пользователя, новые первыми.
// @Tags Confessions
// @Produce  json
// @Success 200 {object} map[string]any "Список сообщений"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при чтении истории"
// @Router /confessions [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.confession.list"
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

	items, err := h.service.List(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list confessions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list confessions"))
		return
	}

	log.Info("confessions listed", slog.Int("count", len(items)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"confessions": items,
		"count":       len(items),
	}))
}
