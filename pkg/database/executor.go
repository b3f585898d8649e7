package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/apperrors"
	"github.com/quickcommerce/deals-engine/pkg/models"
)

// Executor runs one validated SELECT and returns its rows. The engine
// depends on this interface so tests can substitute an in-memory double.
type Executor interface {
	Execute(ctx context.Context, statement string) (*models.RowSet, error)
}

// PgxExecutor executes statements against the shared pool inside a
// read-only transaction with a per-statement deadline.
type PgxExecutor struct {
	db      *DB
	timeout time.Duration
	maxRows int
	logger  *zap.Logger
}

// NewPgxExecutor creates the production executor.
func NewPgxExecutor(db *DB, timeout time.Duration, maxRows int, logger *zap.Logger) *PgxExecutor {
	return &PgxExecutor{
		db:      db,
		timeout: timeout,
		maxRows: maxRows,
		logger:  logger.Named("executor"),
	}
}

// Execute implements Executor. Timeouts surface as
// apperrors.KindExecutionTimeout, everything else as KindExecutionFailed.
func (e *PgxExecutor) Execute(ctx context.Context, statement string) (*models.RowSet, error) {
	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	tx, err := e.db.BeginTx(execCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, e.classify(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only tx, rollback is best effort

	rows, err := tx.Query(execCtx, statement)
	if err != nil {
		return nil, e.classify(err, "query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &models.RowSet{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, e.classify(err, "scan row")
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)

		// Validation clamps LIMIT, so this only trips on a validator gap.
		if e.maxRows > 0 && len(result.Rows) >= e.maxRows {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, e.classify(err, "iterate rows")
	}

	return result, nil
}

func (e *PgxExecutor) classify(err error, stage string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		e.logger.Warn("Statement timed out", zap.String("stage", stage))
		return apperrors.New(apperrors.KindExecutionTimeout,
			fmt.Sprintf("query exceeded the %v execution budget", e.timeout), err)
	}
	e.logger.Error("Statement execution failed", zap.String("stage", stage), zap.Error(err))
	return apperrors.New(apperrors.KindExecutionFailed, "query execution failed", err)
}
