// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"chirp/internal/models"
	"chirp/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const (
	// maxTxRetries bounds retries after the first attempt, so three attempts in total.
	maxTxRetries  = 2
	txRetryBase   = 25 * time.Millisecond
	txRetryMaxGap = 250 * time.Millisecond
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// Page bounds a listing. A non-positive Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}

// dbError maps a raw store error onto the application error taxonomy.
// Deadlines and cancellations surface as retryable UNAVAILABLE.
func dbError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewUnavailableError(err)
	}
	return models.NewInternalError(err)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == sqlStateUniqueViolation {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// isRetryableTxError reports serialization failures and deadlocks.
func isRetryableTxError(err error) bool {
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}

// transactWithRetry runs fn in a transaction, retrying with exponential
// backoff when Postgres aborts it for serialization or deadlock reasons.
// Exhausting the retries yields UNAVAILABLE.
func transactWithRetry(ctx context.Context, db *gorm.DB, operation string, fn func(tx *gorm.DB) error) error {
	backoff := retry.WithMaxRetries(maxTxRetries,
		retry.WithCappedDuration(txRetryMaxGap,
			retry.WithJitter(txRetryBase/2, retry.NewExponential(txRetryBase))))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			observability.TransactionRetries.WithLabelValues(operation).Inc()
		}
		txErr := db.WithContext(ctx).Transaction(fn)
		if isRetryableTxError(txErr) {
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if isRetryableTxError(err) {
		return models.NewUnavailableError(err)
	}
	return dbError(err)
}
