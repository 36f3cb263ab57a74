package list

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListForRoom(ctx context.Context, roomID string) ([]*models.Message, error) {
	args := m.Called(ctx, roomID)
	if res := args.Get(0); res != nil {
		return res.([]*models.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestListHandler(t *testing.T) {
	tests := []struct {
		name           string
		roomID         string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "сообщения в порядке создания",
			roomID: "r1",
			setupMock: func(m *MockService) {
				m.On("ListForRoom", mock.Anything, "r1").Return([]*models.Message{
					{ID: "m1", ChatroomID: "r1", Content: "first"},
					{ID: "m2", ChatroomID: "r1", Content: "second"},
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"id":"m1"`,
		},
		{
			name:   "пустая комната",
			roomID: "r2",
			setupMock: func(m *MockService) {
				m.On("ListForRoom", mock.Anything, "r2").Return(nil, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":[]}`,
		},
		{
			name:   "комната не найдена",
			roomID: "missing",
			setupMock: func(m *MockService) {
				m.On("ListForRoom", mock.Anything, "missing").
					Return(nil, fmt.Errorf("chat.ListForRoom: %w", models.ErrNotFound)).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"not found"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			r := chi.NewRouter()
			r.Get("/messages/{roomID}", New(sl.Discard(), svc).ServeHTTP)

			req := httptest.NewRequest(http.MethodGet, "/messages/"+tt.roomID, nil)
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestListHandler_KeepsOrder(t *testing.T) {
	svc := new(MockService)
	svc.On("ListForRoom", mock.Anything, "r1").Return([]*models.Message{
		{ID: "m1", Content: "first"},
		{ID: "m2", Content: "second"},
	}, nil).Once()

	r := chi.NewRouter()
	r.Get("/messages/{roomID}", New(sl.Discard(), svc).ServeHTTP)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/r1", nil))

	body := rec.Body.String()
	assert.Less(t, strings.Index(body, `"id":"m1"`), strings.Index(body, `"id":"m2"`))
}
