// Package status реализует HTTP-обработчик статуса одной отправки.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/unsaidapp/unsaid-backend/internal/http/middlewarectx"
	"github.com/unsaidapp/unsaid-backend/internal/http/response"
	"github.com/unsaidapp/unsaid-backend/internal/lib/sl"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики статуса отправки.
type Service interface {
	Status(ctx context.Context, userUID, submissionID string) (*models.ConfessionSummary, error)
}

// Handler управляет HTTP-запросами на получение статуса отправки.
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
// @Summary Статус отправки
// @Description Возвращает состояние одной отправки пользователя по её идентификатору.
// @Tags Confessions
// @Produce  json
// @Param submission_id path string true "Идентификатор отправки"
// @Success 200 {object} map[string]any "Состояние отправки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Отправка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при чтении статуса"
// @Router /confessions/{submission_id} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.confession.status"
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

	submissionID := chi.URLParam(r, "submission_id")
	if submissionID == "" {
		log.Error("submission_id is empty")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("submission_id is required"))
		return
	}

	summary, err := h.service.Status(r.Context(), userUID, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("confession not found", slog.String("submission_id", submissionID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("confession not found"))
			return
		}
		log.Error("failed to read confession status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read confession status"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(summary))
}
