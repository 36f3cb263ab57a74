// Package repository реализует хранилище на PostgreSQL: комнаты чата,
// сообщения, гостей, каталог тарифов и журнал подписок со снимком
// тарифа пользователя.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/inspectra/internal/models"
)

// Storage инкапсулирует соединение с PostgreSQL.
type Storage struct {
	DB          *sql.DB
	defaultPlan string
}

// New открывает подключение. defaultPlan — тариф, к которому
// откатывается снимок пользователя без активной подписки.
func New(storageConnectionString, defaultPlan string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db, defaultPlan: defaultPlan}, nil
}

// DefaultPlan возвращает имя тарифа по умолчанию.
func (s *Storage) DefaultPlan() string {
	return s.defaultPlan
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return errors.New("storage.CheckDatabaseReady: required table subscriptions missing")
	}
	return nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// wrap приводит ошибку драйвера к доменной и добавляет имя операции.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation, pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return fmt.Errorf("%s: %w: %w", op, models.ErrConflict, err)
		case pgerrcode.InvalidTextRepresentation, pgerrcode.ForeignKeyViolation:
			// несуществующий или некорректный идентификатор ни на что не ссылается
			return fmt.Errorf("%s: %w: %w", op, models.ErrNotFound, err)
		case pgerrcode.CheckViolation:
			return fmt.Errorf("%s: %w: %w", op, models.ErrValidation, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// inTx выполняет fn в транзакции, откатывая её при ошибке.
func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// scanner — общий интерфейс *sql.Row и *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
