package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/magabrotheeeer/inspectra/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/inspectra/internal/lib/sl"
	"github.com/magabrotheeeer/inspectra/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetProperty(ctx context.Context, propertyID string) (*models.Property, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockRepository) UpsertGuest(ctx context.Context, name, email, token string) (*models.GuestUser, error) {
	args := m.Called(ctx, name, email, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestUser), args.Error(1)
}

func (m *MockRepository) GetGuest(ctx context.Context, id string) (*models.GuestUser, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestUser), args.Error(1)
}

func (m *MockRepository) GetGuestByToken(ctx context.Context, token string) (*models.GuestUser, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestUser), args.Error(1)
}

func (m *MockRepository) GetOrCreateRoom(ctx context.Context, propertyID, clientID, realtorID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, propertyID, clientID, realtorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockRepository) GetRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockRepository) ListRoomsForUser(ctx context.Context, userID string, role models.RoomRole) ([]*models.RoomView, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RoomView), args.Error(1)
}

func (m *MockRepository) UpdateRoomSummary(ctx context.Context, roomID, text string, at time.Time) error {
	return m.Called(ctx, roomID, text, at).Error(0)
}

func (m *MockRepository) CreateMessage(ctx context.Context, roomID string, sender models.Sender, content string) (*models.Message, error) {
	args := m.Called(ctx, roomID, sender, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockRepository) ListMessages(ctx context.Context, roomID string) ([]*models.Message, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *MockRepository) MarkSeen(ctx context.Context, roomID, readerID string) (int64, error) {
	args := m.Called(ctx, roomID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Notify(ctx context.Context, n models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type MockTokens struct{ mock.Mock }

func (m *MockTokens) GenerateGuestToken(guestID string) (string, error) {
	args := m.Called(guestID)
	return args.String(0), args.Error(1)
}

func newTestService() (*Service, *MockRepository, *MockNotifier, *MockTokens) {
	repo := new(MockRepository)
	notifier := new(MockNotifier)
	tokens := new(MockTokens)
	return NewService(repo, notifier, tokens, "https://inspectra.example/", sl.Discard()), repo, notifier, tokens
}

func TestService_CreateGuestRoom(t *testing.T) {
	ctx := context.Background()
	property := &models.Property{ID: "p1", Title: "Flat on Allen Avenue", RealtorID: "r1"}
	guest := &models.GuestUser{ID: "g1", Name: "Ada", Email: "ada@example.com", ChatAccessToken: "tok"}
	room := &models.ChatRoom{ID: "room1", PropertyID: "p1", ClientID: "g1", RealtorID: "r1"}
	req := models.DummyRoom{PropertyID: "p1", ClientName: "Ada", ClientEmail: "Ada@Example.com"}

	tests := []struct {
		name       string
		setupMocks func(*MockRepository, *MockNotifier)
		wantErr    error
	}{
		{
			name: "success",
			setupMocks: func(r *MockRepository, n *MockNotifier) {
				r.On("GetProperty", ctx, "p1").Return(property, nil).Once()
				r.On("UpsertGuest", ctx, "Ada", "ada@example.com", mock.MatchedBy(func(tok string) bool {
					return len(tok) == 64
				})).Return(guest, nil).Once()
				r.On("GetOrCreateRoom", ctx, "p1", "g1", "r1").Return(room, nil).Once()
				n.On("Notify", ctx, mock.MatchedBy(func(msg models.Notification) bool {
					return msg.Template == rabbitmq.TemplateGuestChatLink &&
						msg.To == "ada@example.com" &&
						msg.Data["chatLink"] == "https://inspectra.example/guest-chat/tok" &&
						msg.Data["propertyTitle"] == property.Title
				})).Return(nil).Once()
			},
		},
		{
			name: "notification failure is not surfaced",
			setupMocks: func(r *MockRepository, n *MockNotifier) {
				r.On("GetProperty", ctx, "p1").Return(property, nil).Once()
				r.On("UpsertGuest", ctx, "Ada", "ada@example.com", mock.Anything).Return(guest, nil).Once()
				r.On("GetOrCreateRoom", ctx, "p1", "g1", "r1").Return(room, nil).Once()
				n.On("Notify", ctx, mock.Anything).Return(errors.New("broker down")).Once()
			},
		},
		{
			name: "unknown property",
			setupMocks: func(r *MockRepository, _ *MockNotifier) {
				r.On("GetProperty", ctx, "p1").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, notifier, _ := newTestService()
			tt.setupMocks(repo, notifier)

			got, err := svc.CreateGuestRoom(ctx, req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, room, got.Room)
				assert.Equal(t, guest, got.Guest)
			}
			repo.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestService_Append(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	room := &models.ChatRoom{ID: "room1"}
	saved := &models.Message{ID: "m1", ChatroomID: "room1", SenderID: "u1", SenderKind: models.SenderUser, Content: "hello", CreatedAt: now}

	tests := []struct {
		name       string
		sender     models.Sender
		content    string
		setupMocks func(*MockRepository)
		wantErr    error
	}{
		{
			name:    "user sender",
			sender:  models.Sender{Kind: models.SenderUser, ID: "u1"},
			content: "hello",
			setupMocks: func(r *MockRepository) {
				r.On("GetRoom", ctx, "room1").Return(room, nil).Once()
				r.On("GetUser", ctx, "u1").Return(&models.User{UID: "u1"}, nil).Once()
				r.On("CreateMessage", ctx, "room1", models.Sender{Kind: models.SenderUser, ID: "u1"}, "hello").Return(saved, nil).Once()
				r.On("UpdateRoomSummary", ctx, "room1", "hello", now).Return(nil).Once()
			},
		},
		{
			name:    "guest sender resolves through guests",
			sender:  models.Sender{Kind: models.SenderGuest, ID: "g1"},
			content: "hello",
			setupMocks: func(r *MockRepository) {
				r.On("GetRoom", ctx, "room1").Return(room, nil).Once()
				r.On("GetGuest", ctx, "g1").Return(&models.GuestUser{ID: "g1"}, nil).Once()
				r.On("CreateMessage", ctx, "room1", models.Sender{Kind: models.SenderGuest, ID: "g1"}, "hello").Return(saved, nil).Once()
				r.On("UpdateRoomSummary", ctx, "room1", "hello", now).Return(nil).Once()
			},
		},
		{
			name:    "stale summary still succeeds",
			sender:  models.Sender{Kind: models.SenderUser, ID: "u1"},
			content: "hello",
			setupMocks: func(r *MockRepository) {
				r.On("GetRoom", ctx, "room1").Return(room, nil).Once()
				r.On("GetUser", ctx, "u1").Return(&models.User{UID: "u1"}, nil).Once()
				r.On("CreateMessage", ctx, "room1", mock.Anything, "hello").Return(saved, nil).Once()
				r.On("UpdateRoomSummary", ctx, "room1", "hello", now).Return(errors.New("db gone")).Once()
			},
		},
		{
			name:    "unknown room",
			sender:  models.Sender{Kind: models.SenderUser, ID: "u1"},
			content: "hello",
			setupMocks: func(r *MockRepository) {
				r.On("GetRoom", ctx, "room1").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrNotFound,
		},
		{
			name:    "unknown sender",
			sender:  models.Sender{Kind: models.SenderGuest, ID: "ghost"},
			content: "hello",
			setupMocks: func(r *MockRepository) {
				r.On("GetRoom", ctx, "room1").Return(room, nil).Once()
				r.On("GetGuest", ctx, "ghost").Return(nil, models.ErrNotFound).Once()
			},
			wantErr: models.ErrNotFound,
		},
		{
			name:       "unknown sender kind",
			sender:     models.Sender{Kind: "Robot", ID: "u1"},
			content:    "hello",
			setupMocks: func(_ *MockRepository) {},
			wantErr:    models.ErrValidation,
		},
		{
			name:       "empty content",
			sender:     models.Sender{Kind: models.SenderUser, ID: "u1"},
			content:    "   ",
			setupMocks: func(_ *MockRepository) {},
			wantErr:    models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, _ := newTestService()
			tt.setupMocks(repo)

			msg, err := svc.Append(ctx, "room1", tt.sender, tt.content)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, msg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, saved, msg)
			}
			repo.AssertExpectations(t)
			repo.AssertNotCalled(t, "CreateMessage", ctx, "room1", models.Sender{Kind: "Robot", ID: "u1"}, mock.Anything)
		})
	}
}

func TestService_StartGuestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		svc, repo, _, tokens := newTestService()
		guest := &models.GuestUser{ID: "g1", Name: "Ada"}
		repo.On("GetGuestByToken", ctx, "tok").Return(guest, nil).Once()
		tokens.On("GenerateGuestToken", "g1").Return("jwt", nil).Once()

		session, err := svc.StartGuestSession(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, "jwt", session.Token)
		assert.Equal(t, guest, session.Guest)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, repo, _, tokens := newTestService()
		repo.On("GetGuestByToken", ctx, "nope").Return(nil, models.ErrNotFound).Once()

		_, err := svc.StartGuestSession(ctx, "nope")
		require.ErrorIs(t, err, models.ErrNotFound)
		tokens.AssertNotCalled(t, "GenerateGuestToken", mock.Anything)
	})

	t.Run("empty token", func(t *testing.T) {
		svc, _, _, _ := newTestService()
		_, err := svc.StartGuestSession(ctx, "")
		require.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestService_ListRoomsForUser_RejectsUnknownRole(t *testing.T) {
	svc, repo, _, _ := newTestService()
	_, err := svc.ListRoomsForUser(context.Background(), "u1", "landlord")
	require.ErrorIs(t, err, models.ErrValidation)
	repo.AssertNotCalled(t, "ListRoomsForUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ListForRoom(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService()
	msgs := []*models.Message{{ID: "m1", Content: "hello"}, {ID: "m2", Content: "hi"}}
	repo.On("GetRoom", ctx, "room1").Return(&models.ChatRoom{ID: "room1"}, nil).Once()
	repo.On("ListMessages", ctx, "room1").Return(msgs, nil).Once()

	got, err := svc.ListForRoom(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, msgs, got)
}

func TestService_MarkSeen(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService()
	repo.On("MarkSeen", ctx, "room1", "u2").Return(int64(3), nil).Once()

	n, err := svc.MarkSeen(ctx, "room1", "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = svc.MarkSeen(ctx, "", "u2")
	require.ErrorIs(t, err, models.ErrValidation)
}
