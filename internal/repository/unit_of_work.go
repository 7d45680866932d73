package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Repositories is the set of repositories bound to one transaction.
type Repositories struct {
	Products     ProductRepository
	Users        UserRepository
	Transactions TransactionRepository
}

// NewRepositories binds every transactional repository to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Products:     NewProductRepository(db),
		Users:        NewUserRepository(db),
		Transactions: NewTransactionRepository(db),
	}
}

// UnitOfWork runs fn inside a single database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type sqlUnitOfWork struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewUnitOfWork creates a UnitOfWork that opens one transaction per call
func NewUnitOfWork(db *sql.DB) UnitOfWork {
	return &sqlUnitOfWork{
		db:   db,
		opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

func (u *sqlUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) (err error) {
	tx, err := u.db.BeginTx(ctx, u.opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, NewRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
