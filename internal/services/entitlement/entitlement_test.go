package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

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

func (m *MockRepository) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockRepository) GetSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	return m.sub(m.Called(ctx, subscriptionID))
}

func (m *MockRepository) FindActiveSubscription(ctx context.Context, userUID string, now time.Time) (*models.Subscription, error) {
	return m.sub(m.Called(ctx, userUID, now))
}

func (m *MockRepository) FindLifetimeSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	return m.sub(m.Called(ctx, userUID))
}

func (m *MockRepository) IncrementUsage(ctx context.Context, subscriptionID string, action models.ActionType) (*models.Subscription, error) {
	return m.sub(m.Called(ctx, subscriptionID, action))
}

func (m *MockRepository) DecrementUsage(ctx context.Context, subscriptionID string, action models.ActionType) (*models.Subscription, error) {
	return m.sub(m.Called(ctx, subscriptionID, action))
}

func (m *MockRepository) sub(args mock.Arguments) (*models.Subscription, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(repo *MockRepository) *Service {
	s := NewService(repo, sl.Discard())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestService_CanPerform(t *testing.T) {
	ctx := context.Background()
	realtor := &models.User{UID: "u1", Role: models.RoleRealtor}
	plan := &models.Plan{ID: "plan-starter", Name: "Starter", Features: models.PlanFeatures{MaxListings: 3, FeaturedListings: 1}}
	withUsage := func(listings, featured int) *models.Subscription {
		return &models.Subscription{ID: "s1", UserUID: "u1", PlanID: plan.ID, Usage: models.Usage{ListingsUsed: listings, FeaturedListingUsed: featured}}
	}

	tests := []struct {
		name        string
		action      models.ActionType
		setupMocks  func(*MockRepository)
		wantAllowed bool
		wantReason  string
		wantCharge  bool
	}{
		{
			name:   "администратор без подписки",
			action: models.ActionNormal,
			setupMocks: func(r *MockRepository) {
				r.On("GetUser", ctx, "u1").Return(&models.User{UID: "u1", Role: models.RoleAdmin}, nil).Once()
			},
			wantAllowed: true,
		},
		{
			name:   "нет действующей подписки",
			action: models.ActionNormal,
			setupMocks: func(r *MockRepository) {
				r.On("GetUser", ctx, "u1").Return(realtor, nil).Once()
				r.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(nil, models.ErrNotFound).Once()
				r.On("FindLifetimeSubscription", ctx, "u1").Return(nil, models.ErrNotFound).Once()
			},
			wantReason: ReasonNoSubscription,
		},
		{
			name:   "квота исчерпана: 3 из 3",
			action: models.ActionNormal,
			setupMocks: func(r *MockRepository) {
				r.On("GetUser", ctx, "u1").Return(realtor, nil).Once()
				r.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(withUsage(3, 0), nil).Once()
				r.On("GetPlan", ctx, plan.ID).Return(plan, nil).Once()
			},
			wantReason: ReasonListingLimit,
		},
		{
			name:   "квота не исчерпана: 2 из 3",
			action: models.ActionNormal,
			setupMocks: func(r *MockRepository) {
				r.On("GetUser", ctx, "u1").Return(realtor, nil).Once()
				r.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(withUsage(2, 0), nil).Once()
				r.On("GetPlan", ctx, plan.ID).Return(plan, nil).Once()
			},
			wantAllowed: true,
			wantCharge:  true,
		},
		{
			name:   "избранные исчерпаны",
			action: models.ActionFeatured,
			setupMocks: func(r *MockRepository) {
				r.On("GetUser", ctx, "u1").Return(realtor, nil).Once()
				r.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(withUsage(1, 1), nil).Once()
				r.On("GetPlan", ctx, plan.ID).Return(plan, nil).Once()
			},
			wantReason: ReasonFeaturedLimit,
		},
		{
			name:   "избранное упирается в общую квоту",
			action: models.ActionFeatured,
			setupMocks: func(r *MockRepository) {
				r.On("GetUser", ctx, "u1").Return(realtor, nil).Once()
				r.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(withUsage(3, 0), nil).Once()
				r.On("GetPlan", ctx, plan.ID).Return(plan, nil).Once()
			},
			wantReason: ReasonListingLimit,
		},
		{
			name:   "бессрочный доступ без квот",
			action: models.ActionNormal,
			setupMocks: func(r *MockRepository) {
				lifetime := withUsage(100, 50)
				lifetime.HasLifeTimeAccess = true
				r.On("GetUser", ctx, "u1").Return(realtor, nil).Once()
				r.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(nil, models.ErrNotFound).Once()
				r.On("FindLifetimeSubscription", ctx, "u1").Return(lifetime, nil).Once()
			},
			wantAllowed: true,
			wantCharge:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			tt.setupMocks(repo)
			svc := newTestService(repo)

			d, err := svc.CanPerform(ctx, "u1", tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAllowed, d.Allowed)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantCharge, d.ChargeTo != nil)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_CanPerform_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown action", func(t *testing.T) {
		repo := new(MockRepository)
		_, err := newTestService(repo).CanPerform(ctx, "u1", "premium")
		require.ErrorIs(t, err, models.ErrValidation)
		repo.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetUser", ctx, "u1").Return(nil, models.ErrNotFound).Once()
		_, err := newTestService(repo).CanPerform(ctx, "u1", models.ActionNormal)
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("storage failure surfaces", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetUser", ctx, "u1").Return(&models.User{UID: "u1"}, nil).Once()
		repo.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(nil, errors.New("connection reset")).Once()
		_, err := newTestService(repo).CanPerform(ctx, "u1", models.ActionNormal)
		require.Error(t, err)
		repo.AssertNotCalled(t, "FindLifetimeSubscription", mock.Anything, mock.Anything)
	})
}

func TestService_Charge(t *testing.T) {
	ctx := context.Background()

	t.Run("owner", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetSubscription", ctx, "s1").Return(&models.Subscription{ID: "s1", UserUID: "u1"}, nil).Once()
		repo.On("IncrementUsage", ctx, "s1", models.ActionFeatured).
			Return(&models.Subscription{ID: "s1", UserUID: "u1", Usage: models.Usage{ListingsUsed: 1, FeaturedListingUsed: 1}}, nil).Once()

		sub, err := newTestService(repo).Charge(ctx, "u1", "s1", models.ActionFeatured)
		require.NoError(t, err)
		assert.Equal(t, 1, sub.Usage.FeaturedListingUsed)
		repo.AssertExpectations(t)
	})

	t.Run("foreign subscription", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetSubscription", ctx, "s1").Return(&models.Subscription{ID: "s1", UserUID: "u2"}, nil).Once()

		_, err := newTestService(repo).Charge(ctx, "u1", "s1", models.ActionNormal)
		require.ErrorIs(t, err, models.ErrForbidden)
		repo.AssertNotCalled(t, "IncrementUsage", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("active subscription", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(&models.Subscription{ID: "s1"}, nil).Once()
		repo.On("DecrementUsage", ctx, "s1", models.ActionNormal).Return(&models.Subscription{ID: "s1"}, nil).Once()

		_, err := newTestService(repo).Release(ctx, "u1", models.ActionNormal)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("nothing to release", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("FindActiveSubscription", ctx, "u1", fixedNow).Return(nil, models.ErrNotFound).Once()
		repo.On("FindLifetimeSubscription", ctx, "u1").Return(nil, models.ErrNotFound).Once()

		_, err := newTestService(repo).Release(ctx, "u1", models.ActionNormal)
		require.ErrorIs(t, err, models.ErrNotFound)
	})
}
