// Package repository содержит реализацию доступа к данным в PostgreSQL.
//
// Каждая операция, затрагивающая балансы, выполняется как единая
// транзакция: изменение кошелька, запись в журнал транзакций и
// изменение связанных сущностей фиксируются или откатываются вместе.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrEmailTaken возвращается при регистрации с уже занятым email.
var (
	ErrEmailTaken = errors.New("email already registered")
	// ErrReferralCodeTaken возвращается при коллизии реферального кода.
	ErrReferralCodeTaken = errors.New("referral code already taken")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrWalletNotFound возвращается, если у пользователя нет кошелька в этой валюте.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrInsufficientFunds возвращается при списании суммы, превышающей доступный баланс.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrReservedUnderflow возвращается при попытке освободить больше средств,
	// чем зарезервировано. Признак ошибки в вызывающем коде.
	ErrReservedUnderflow = errors.New("reserved balance underflow")
	// ErrPlanNotFound возвращается, если тарифный план не найден.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrPlanInactive возвращается при инвестировании в отключённый план.
	ErrPlanInactive = errors.New("plan is not active")
	// ErrPlanLocked возвращается при изменении условий заблокированного плана.
	ErrPlanLocked = errors.New("plan is locked by existing investments")
	// ErrSlugTaken возвращается при создании плана с занятым slug.
	ErrSlugTaken = errors.New("plan slug already taken")
	// ErrAmountOutOfRange возвращается, если сумма вне лимитов плана.
	ErrAmountOutOfRange = errors.New("amount outside plan limits")
	// ErrInvestmentNotFound возвращается, если инвестиция не найдена.
	ErrInvestmentNotFound = errors.New("investment not found")
	// ErrInvestmentNotOwned возвращается при действии с чужой инвестицией.
	ErrInvestmentNotOwned = errors.New("investment owned by another user")
	// ErrInvestmentNotActive возвращается при отмене неактивной инвестиции.
	ErrInvestmentNotActive = errors.New("investment is not active")
	// ErrInvestmentCompleted возвращается при действии с завершённой инвестицией.
	ErrInvestmentCompleted = errors.New("completed investments are immutable")
	// ErrPayoutsStarted возвращается при отмене инвестиции с начатыми выплатами.
	ErrPayoutsStarted = errors.New("cannot cancel after payouts started")
	// ErrTransactionNotFound возвращается, если транзакция не найдена.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrNotPendingWithdrawal возвращается, если транзакция — не ожидающий вывод.
	ErrNotPendingWithdrawal = errors.New("transaction is not a pending withdrawal")
	// ErrNotPendingDeposit возвращается, если транзакция — не ожидающий депозит.
	ErrNotPendingDeposit = errors.New("transaction is not a pending deposit")
)

// Pool описывает подмножество pgxpool.Pool, используемое репозиторием.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при конфликтах сериализации и временных сетевых сбоях.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// inTx выполняет fn внутри одной транзакции БД с повтором при конфликтах.
// Это атомарная единица работы: любая ошибка fn откатывает все изменения.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.UniqueViolation &&
		(constraint == "" || pgErr.ConstraintName == constraint)
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
