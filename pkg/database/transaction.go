package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type txContextKey struct{}

// Tx is a context-scoped transaction. Commit and Rollback are safe to call in
// either order; the second call is a no-op.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type txState struct {
	tx       *sqlx.Tx
	logger   ectologger.Logger
	finished bool
	nested   bool
}

// GetTx begins a transaction and returns a child context carrying it. Query
// methods on DB called with that context run inside the transaction. If the
// context already carries an open transaction, the existing one is reused and
// the returned Tx defers commit to the outermost caller.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if existing, ok := ctx.Value(txContextKey{}).(*txState); ok && !existing.finished {
		return ctx, &txState{tx: existing.tx, logger: logger, nested: true}, nil
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	state := &txState{tx: tx, logger: logger}
	return context.WithValue(ctx, txContextKey{}, state), state, nil
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	if state, ok := ctx.Value(txContextKey{}).(*txState); ok && !state.finished {
		return state.tx
	}
	return nil
}

func (s *txState) Commit(ctx context.Context) error {
	if s.nested || s.finished {
		return nil
	}
	s.finished = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *txState) Rollback(ctx context.Context) error {
	if s.nested || s.finished {
		return nil
	}
	s.finished = true
	if err := s.tx.Rollback(); err != nil {
		s.logger.WithContext(ctx).Errorf("failed to rollback transaction: %s", err)
		return err
	}
	return nil
}
