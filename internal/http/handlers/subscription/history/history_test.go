package history

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/inspectra/internal/http/middlewarectx"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) History(ctx context.Context, userUID string) ([]*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if res := args.Get(0); res != nil {
		return res.([]*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestHistoryHandler(t *testing.T) {
	tests := []struct {
		name           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "история подписок",
			userUID: "u1",
			setupMock: func(m *MockService) {
				m.On("History", mock.Anything, "u1").Return([]*models.Subscription{
					{ID: "s2", UserUID: "u1", SubscriptionStatus: models.SubscriptionActive},
					{ID: "s1", UserUID: "u1", SubscriptionStatus: models.SubscriptionExpired},
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":"s2"`,
		},
		{
			name:    "подписок не было",
			userUID: "u2",
			setupMock: func(m *MockService) {
				m.On("History", mock.Anything, "u2").Return(nil, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":[]}`,
		},
		{
			name:    "ошибка хранилища",
			userUID: "u3",
			setupMock: func(m *MockService) {
				m.On("History", mock.Anything, "u3").Return(nil, fmt.Errorf("db down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"internal error"`,
		},
		{
			name:           "без пользователя в контексте",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"unauthorized"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(sl.Discard(), svc)

			req := httptest.NewRequest(http.MethodGet, "/subscriptions/history", nil)
			if tt.userUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID))
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
