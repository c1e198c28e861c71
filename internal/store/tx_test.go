package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

type sqlTransactor struct{ db *sql.DB }

func (s sqlTransactor) BeginTx(ctx context.Context) (Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func newMockTransactor(t *testing.T) (Transactor, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlTransactor{db: db}, mock
}

func TestRunInTx_Commit(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trading_account").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := RunInTx(context.Background(), tr, func(tx Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE trading_account SET success = 1")
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx() failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := RunInTx(context.Background(), tr, func(tx Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected fn error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if p := recover(); p != "kaboom" {
			t.Errorf("expected panic to be re-raised, got %v", p)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
	}()

	_ = RunInTx(context.Background(), tr, func(tx Tx) error { panic("kaboom") })
}

func TestRunInTx_BeginFails(t *testing.T) {
	tr, mock := newMockTransactor(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection lost"))

	called := false
	err := RunInTx(context.Background(), tr, func(tx Tx) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Errorf("expected begin failure without calling fn, err=%v called=%v", err, called)
	}
}
