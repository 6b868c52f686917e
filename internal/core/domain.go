package core

import (
	"errors"
	"fmt"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	// TransactionType classifies both transactions and categories.
	TransactionType string

	Category struct {
		ID   int64           `json:"id"`
		Name string          `json:"name"`
		Type TransactionType `json:"type"`
	}

	// Transaction is a persisted ledger row. Category and Description are nullable.
	Transaction struct {
		ID          int64           `json:"id"`
		Type        TransactionType `json:"type"`
		Category    *int64          `json:"category"`
		Amount      float64         `json:"amount"`
		Date        string          `json:"date"`
		Description *string         `json:"description"`
	}

	// TransactionInput is the payload of create and update. Every field is a pointer so
	// that an absent value reaches validation (and storage) as NULL rather than a zero value.
	TransactionInput struct {
		Type        *TransactionType `json:"type"`
		Category    *int64           `json:"category"`
		Amount      *float64         `json:"amount"`
		Date        *string          `json:"date"`
		Description *string          `json:"description"`
	}
)

var (
	ErrNotFound     = errors.New("transaction not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConstraint   = errors.New("rejected by schema")

	ErrMissingType   = fmt.Errorf("%w: type is required", ErrInvalidInput)
	ErrInvalidType   = fmt.Errorf("%w: type must be one of income, expense", ErrInvalidInput)
	ErrMissingAmount = fmt.Errorf("%w: amount is required", ErrInvalidInput)
	ErrMissingDate   = fmt.Errorf("%w: date is required", ErrInvalidInput)
)

// Valid reports whether t is one of the enumerated values.
func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// Validate mirrors the table constraints: type enumerated and NOT NULL, amount NOT NULL,
// date NOT NULL. Amount sign and date format are deliberately unchecked.
func (in TransactionInput) Validate() error {
	if in.Type == nil {
		return ErrMissingType
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if in.Amount == nil {
		return ErrMissingAmount
	}
	if in.Date == nil {
		return ErrMissingDate
	}
	return nil
}

// Record builds the transaction described by the input under the given id.
// The input must have passed Validate.
func (in TransactionInput) Record(id int64) Transaction {
	return Transaction{
		ID:          id,
		Type:        *in.Type,
		Category:    in.Category,
		Amount:      *in.Amount,
		Date:        *in.Date,
		Description: in.Description,
	}
}
