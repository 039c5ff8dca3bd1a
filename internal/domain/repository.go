package domain

import "context"

// PhotoRepository defines persistence for transformation jobs.
//
// CreateWithDebit and Transition are the two writes with ledger side effects;
// implementations must apply the job write and the ledger movement as one
// atomic unit so a crash can never leave one without the other.
type PhotoRepository interface {
	// CreateWithDebit inserts the photo and debits photo.Cost from the
	// owner's balance in the same transaction. Returns
	// ErrInsufficientCredits (and writes nothing) when the balance is too
	// low.
	CreateWithDebit(ctx context.Context, photo *TimePhoto) error

	// AttachExternalID records the provider-assigned task id. The id is
	// set once; a second call with a different value returns
	// ErrExternalIDConflict.
	AttachExternalID(ctx context.Context, photoID, externalTaskID string) error

	// Transition moves a processing photo to the terminal state described
	// by outcome, refunding the owner's balance when the outcome is
	// failed. Calling it on an already-terminal photo is a no-op that
	// returns the current row with changed=false. Only one of two
	// concurrent calls observes changed=true.
	Transition(ctx context.Context, photoID string, outcome Outcome) (photo *TimePhoto, changed bool, err error)

	GetByID(ctx context.Context, photoID string) (*TimePhoto, error)
	FindByExternalID(ctx context.Context, provider, externalTaskID string) (*TimePhoto, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]TimePhoto, int, error)
}

// LedgerRepository manages per-owner credit balances. Balances never go
// negative; all arithmetic happens in the store, not in application code.
type LedgerRepository interface {
	Balance(ctx context.Context, ownerID string) (int, error)
	// Credit adds amount to the owner's balance, creating the row if needed.
	Credit(ctx context.Context, ownerID string, amount int) error
	// Debit subtracts amount, failing with ErrInsufficientCredits when the
	// balance is lower than amount. No partial debit occurs.
	Debit(ctx context.Context, ownerID string, amount int) error
}
