package register_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/identity-guard/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/identity-guard/internal/http/response"
	"github.com/magabrotheeeer/identity-guard/internal/models"
	"github.com/magabrotheeeer/identity-guard/internal/services/identity"
)

type IdentityServiceMock struct {
	mock.Mock
}

func (m *IdentityServiceMock) Register(ctx context.Context, req identity.RegisterRequest) (models.DisplayAccount, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.DisplayAccount), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           []byte
		setupMocks     func(s *IdentityServiceMock)
		expectedStatus int
	}{
		{
			name: "successful registration",
			body: mustJSON(t, register.Request{
				Email:    "owner@example.com",
				Password: "password123",
				Phone:    "+7 900 000-00-01",
				TaxID:    "7707083893",
			}),
			setupMocks: func(s *IdentityServiceMock) {
				s.On("Register", mock.Anything, mock.MatchedBy(func(req identity.RegisterRequest) bool {
					return req.Email == "owner@example.com" && !req.FreePlan
				})).Return(models.DisplayAccount{
					UID:                "uid-1",
					Email:              "owner@example.com",
					SubscriptionStatus: models.StatusTrial,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "free plan is passed through",
			body: mustJSON(t, register.Request{
				Email:    "free@example.com",
				Password: "password123",
				Plan:     "free",
			}),
			setupMocks: func(s *IdentityServiceMock) {
				s.On("Register", mock.Anything, mock.MatchedBy(func(req identity.RegisterRequest) bool {
					return req.FreePlan
				})).Return(models.DisplayAccount{
					UID:                "uid-2",
					Email:              "free@example.com",
					SubscriptionStatus: models.StatusFree,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid JSON",
			body:           []byte("{bad json"),
			setupMocks:     func(_ *IdentityServiceMock) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation failure",
			body: mustJSON(t, register.Request{
				Email:    "not-an-email",
				Password: "123",
			}),
			setupMocks:     func(_ *IdentityServiceMock) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "duplicate identity maps to conflict",
			body: mustJSON(t, register.Request{
				Email:    "owner@example.com",
				Password: "password123",
			}),
			setupMocks: func(s *IdentityServiceMock) {
				s.On("Register", mock.Anything, mock.Anything).
					Return(models.DisplayAccount{}, models.ErrDuplicateIdentity).Once()
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "service error",
			body: mustJSON(t, register.Request{
				Email:    "owner@example.com",
				Password: "password123",
			}),
			setupMocks: func(s *IdentityServiceMock) {
				s.On("Register", mock.Anything, mock.Anything).
					Return(models.DisplayAccount{}, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(IdentityServiceMock)
			tt.setupMocks(service)

			handler := register.New(newNoopLogger(), service)

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var resp response.OKResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, response.StatusOK, resp.Status)
			}

			service.AssertExpectations(t)
		})
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}
