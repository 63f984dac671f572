// Package google реализует HTTP-обработчик входа через Google.
//
// Handler принимает JSON с данными профиля, валидирует их, создаёт
// пользователя при первом входе и возвращает JWT-токен сессии.
package google

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/unsaidapp/unsaid-backend/internal/http/response"
	"github.com/unsaidapp/unsaid-backend/internal/lib/sl"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/services/identity"
)

// Service описывает интерфейс бизнес-логики входа.
type Service interface {
	Authenticate(ctx context.Context, req models.GoogleAuthRequest) (*identity.AuthResult, error)
}

// Handler управляет HTTP-запросами на вход через Google.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики входа
	validate *validator.Validate // Валидатор структуры входящих данных
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
// @Summary Вход через Google
// @Description Создаёт пользователя при первом входе и возвращает JWT-токен сессии.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.GoogleAuthRequest true "Данные профиля Google"
// @Success 200 {object} map[string]any "Токен и данные пользователя"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при входе"
// @Router /auth/google [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.google"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.GoogleAuthRequest
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

	result, err := h.service.Authenticate(r.Context(), req)
	if err != nil {
		log.Error("failed to authenticate user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not authenticate user"))
		return
	}

	log.Info("user authenticated", slog.String("user_uid", result.User.UID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token":                   result.Token,
		"user_uid":                result.User.UID,
		"email":                   result.User.Email,
		"name":                    result.User.Name,
		"free_messages_remaining": result.User.FreeMessagesRemaining,
		"has_subscription":        result.HasSubscription,
	}))
}
