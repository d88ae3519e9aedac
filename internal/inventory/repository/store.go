package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/medflow/stockledger/pkg/database"
)

// NewRepositories binds the Postgres repositories to q, which is either the
// pool or an open transaction.
func NewRepositories(q sqlx.ExtContext) Repositories {
	return Repositories{
		Items:        NewItemRepository(q),
		Batches:      NewBatchRepository(q),
		Transactions: NewTransactionRepository(q),
		Records:      NewAllocationRepository(q),
	}
}

// Store is the Postgres UnitOfWork. Each Execute runs in its own database
// transaction and is retried whole on serialization failure or deadlock.
type Store struct {
	db *database.DB
}

// NewStore creates a new store
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Execute runs fn inside one database transaction
func (s *Store) Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}

// Reader returns repositories bound to the pool
func (s *Store) Reader() Repositories {
	return NewRepositories(s.db)
}
