package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"lotkeeper/internal/core/apperror"
)

// PostgreSQL error codes the transaction layer translates.
const (
	pgCodeUniqueViolation  = "23505"
	pgCodeSerialization    = "40001"
	pgCodeDeadlockDetected = "40P01"
)

// translateError maps low-level postgres failures onto the error taxonomy the
// domain retries or reports on. AppErrors pass through untouched so business
// rule failures keep their codes.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgCodeSerialization, pgCodeDeadlockDetected:
		// Retryable by the ledger service's conflict loop.
		return apperror.NewOperationConflict("transaction", pgErr.TableName).WithCause(err)
	case pgCodeUniqueViolation:
		return apperror.NewDuplicate(pgErr.TableName, pgErr.ConstraintName, "").WithCause(err)
	}
	return err
}
