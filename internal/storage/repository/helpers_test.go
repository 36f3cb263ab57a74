package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/inspectra/internal/migrations"
	"github.com/magabrotheeeer/inspectra/internal/models"
)

const defaultPlan = "Starter"

var postgresPort = nat.Port("5432/tcp")

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort(postgresPort),
			).WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn, defaultPlan)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))
	require.NoError(t, CheckDatabaseReady(ctx, storage))
	return storage
}

// TestDataFactory создаёт тестовые данные.
type TestDataFactory struct {
	t       *testing.T
	storage *Storage
}

func NewTestDataFactory(t *testing.T, storage *Storage) *TestDataFactory {
	return &TestDataFactory{t: t, storage: storage}
}

func (f *TestDataFactory) User(email, role string) string {
	uid, err := f.storage.CreateUser(context.Background(), models.User{Email: email, Fullname: "User " + email, Role: role})
	require.NoError(f.t, err)
	return uid
}

func (f *TestDataFactory) Property(title, realtorUID string) string {
	id, err := f.storage.CreateProperty(context.Background(), title, realtorUID)
	require.NoError(f.t, err)
	return id
}

func (f *TestDataFactory) Plan(name string) *models.Plan {
	plans, err := f.storage.ListPlans(context.Background())
	require.NoError(f.t, err)
	for i := range plans {
		if plans[i].Name == name {
			return &plans[i]
		}
	}
	f.t.Fatalf("plan %s not seeded", name)
	return nil
}

func (f *TestDataFactory) Activate(userUID string, plan *models.Plan, start, end time.Time, txRef string) *models.Subscription {
	sub, err := f.storage.ActivateSubscription(context.Background(), models.Activation{
		UserUID:   userUID,
		Plan:      plan,
		Amount:    plan.Amount,
		TxRef:     txRef,
		StartDate: start,
		EndDate:   end,
	})
	require.NoError(f.t, err)
	return sub
}

func (f *TestDataFactory) CountActive(userUID string) int {
	var n int
	require.NoError(f.t, f.storage.DB.QueryRow(
		`SELECT COUNT(*) FROM subscriptions WHERE user_uid = $1 AND subscription_status = 'active'`, userUID).Scan(&n))
	return n
}
