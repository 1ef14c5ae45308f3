package gateway

import "context"

// TransactionObject is the opaque handle carrying the store transaction
// between the unit of work and the repositories bound to it.
type TransactionObject interface{}

// TransactionManager is the unit of work: Run begins a store transaction,
// injects it into the context under TransactionKey, and commits when fn
// returns nil or rolls back when it returns an error.
type TransactionManager interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionKeyType avoids context key collisions.
type TransactionKeyType string

const TransactionKey TransactionKeyType = "transaction"
