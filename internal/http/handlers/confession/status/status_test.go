package status

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/unsaidapp/unsaid-backend/internal/http/middlewarectx"
	"github.com/unsaidapp/unsaid-backend/internal/models"
	"github.com/unsaidapp/unsaid-backend/internal/storage/repository"
)

// MockService реализует интерфейс status.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Status(ctx context.Context, userUID, submissionID string) (*models.ConfessionSummary, error) {
	args := m.Called(ctx, userUID, submissionID)
	if res := args.Get(0); res != nil {
		return res.(*models.ConfessionSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestStatusHandler(t *testing.T) {
	tests := []struct {
		name           string
		submissionID   string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:         "успешное чтение статуса",
			submissionID: "sub-1",
			userUID:      "u-1",
			setupMock: func(m *MockService) {
				m.On("Status", mock.Anything, "u-1", "sub-1").
					Return(&models.ConfessionSummary{
						SubmissionID: "sub-1",
						Status:       models.ConfessionSent,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"sent"`,
		},
		{
			name:         "чужая отправка не видна",
			submissionID: "sub-2",
			userUID:      "u-1",
			setupMock: func(m *MockService) {
				m.On("Status", mock.Anything, "u-1", "sub-2").
					Return(nil, repository.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `confession not found`,
		},
		{
			name:           "нет пользователя в контексте",
			submissionID:   "sub-1",
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:         "ошибка сервиса",
			submissionID: "sub-1",
			userUID:      "u-1",
			setupMock: func(m *MockService) {
				m.On("Status", mock.Anything, "u-1", "sub-1").
					Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not read confession status`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodGet, "/confessions/"+tt.submissionID, nil)
			if tt.userUID != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
				req = req.WithContext(ctx)
			}
			// Устанавливаем URL params с помощью роутера chi
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("submission_id", tt.submissionID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
