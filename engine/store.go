/*
store.go - Persistence interface for postings, offerings and contracts

PURPOSE:
  Defines the interface between the engine and the database. Aggregates are
  never stored: required and assigned BU are recomputed from these rows.

KEY INTERFACES:
  Store:   Reads and writes of postings, offerings, descriptions, contracts
  TxStore: Store plus WithTx for atomic multi-row saves

ATOMIC SAVES:
  A contract and its assignments are written together by UpdateContract. The
  service calls it inside WithTx together with any status reset, so a partial
  edit (BU changed but status not reset) is never visible.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - engine/store/memory.go: In-memory for tests
*/
package engine

import "context"

// Store handles persistence of engine rows. Getters return ErrNotFound.
type Store interface {
	FactsProvider
	RateProvider

	GetPosting(ctx context.Context, id PostingID) (Posting, error)
	SavePosting(ctx context.Context, p Posting) error

	SaveOffering(ctx context.Context, o Offering) error
	ListOfferings(ctx context.Context, unitLabel string, semester SemesterCode) ([]Offering, error)

	GetDescription(ctx context.Context, id DescriptionID) (DutyDescription, error)
	SaveDescription(ctx context.Context, d DutyDescription) error
	ListDescriptions(ctx context.Context, unitLabel string) ([]DutyDescription, error)

	GetContract(ctx context.Context, id ContractID) (Contract, error)

	// CreateContract returns ErrDuplicateContract when the posting already has a
	// contract for the application.
	CreateContract(ctx context.Context, c Contract) error

	// UpdateContract saves the contract and replaces its assignment set.
	UpdateContract(ctx context.Context, c Contract) error

	ListContracts(ctx context.Context, posting PostingID) ([]Contract, error)

	// NextExportSequence increments and returns the posting's payroll batch
	// sequence.
	NextExportSequence(ctx context.Context, posting PostingID) (int, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
