// Package ledger declares the ports between the ledger service and its storage backends.
package ledger

import (
	"context"

	"ledger/internal/core"
)

// Ports for outbound storage adapters.
type (
	TransactionWriter interface {
		CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
		// UpdateTransaction replaces all fields of the row; core.ErrNotFound if it does not exist.
		UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error
	}

	TransactionReader interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	}

	// SummaryReader aggregates the whole ledger.
	SummaryReader interface {
		Summarize(ctx context.Context) (core.Summary, error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Store is everything a backend must provide.
	Store interface {
		TransactionWriter
		TransactionReader
		SummaryReader
		CategoryReader
		Pinger
	}
)
