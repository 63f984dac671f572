// Package submit реализует HTTP-обработчик приёма анонимных сообщений.
//
// Handler принимает JSON с текстом и контактом получателя, валидирует его,
// проверяет право пользователя на отправку через сервис и возвращает
// идентификатор отправки. Отказ в праве на отправку отдаётся кодом 403.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/unsaidapp/unsaid-backend/internal/http/middlewarectx"
	"github.com/unsaidapp/unsaid-backend/internal/http/response"
	"github.com/unsaidapp/unsaid-backend/internal/lib/sl"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/services/confession"
	"github.com/unsaidapp/unsaid-backend/internal/services/entitlement"
)

// Service описывает интерфейс бизнес-логики приёма сообщения.
type Service interface {
	Submit(ctx context.Context, userUID string, req models.DummySubmission) (*confession.SubmitResult, error)
}

// Handler управляет HTTP-запросами на отправку сообщений.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отправить анонимное сообщение
// @Description Принимает сообщение, списывает квоту или подписку и ставит задачу доставки.
// @Tags Confessions
// @Accept  json
// @Produce  json
// @Param request body models.DummySubmission true "Сообщение и контакт получателя"
// @Success 200 {object} map[string]any "Идентификатор отправки"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Нет права на отправку"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при приёме сообщения"
// @Router /confessions [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.confession.submit"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummySubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := middlewarectx.UserUIDFromContext(r.Context())
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.Submit(r.Context(), userUID, req)
	if err != nil {
		if errors.Is(err, entitlement.ErrNotEntitled) {
			log.Info("submission denied", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("no free messages or active subscription"))
			return
		}
		log.Error("failed to submit confession", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not submit confession"))
		return
	}

	log.Info("confession submitted", slog.String("submission_id", result.SubmissionID))
	render.JSON(w, r, response.StatusOKWithData(result))
}
