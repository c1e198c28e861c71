package store

import (
	"context"
	"fmt"
)

// RunInTx runs fn inside a transaction started on t. The transaction is
// committed when fn returns nil and rolled back when it returns an error or
// panics; the panic is re-raised after the rollback.
func RunInTx(ctx context.Context, t Transactor, fn func(tx Tx) error) (err error) {
	tx, err := t.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
