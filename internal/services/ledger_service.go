package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/ledger"
)

// EventPublisher announces committed writes. amqp.Client satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, kind amqp.EventKind, id int64) error
}

// LedgerService orchestrates ledger operations across storage and AMQP
type LedgerService struct {
	store     ledger.Store
	publisher EventPublisher
}

// NewLedgerService wires a store with an optional publisher; pass nil to
// disable events.
func NewLedgerService(store ledger.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// CreateTransaction validates and stores a new row, then announces it.
func (s *LedgerService) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.store.CreateTransaction(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, amqp.TransactionCreated, tx.ID)
	return tx, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// UpdateTransaction replaces every field of an existing row.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.store.UpdateTransaction(ctx, id, in)
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, amqp.TransactionUpdated, id)
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, amqp.TransactionDeleted, id)
	return nil
}

func (s *LedgerService) Summary(ctx context.Context) (core.Summary, error) {
	return s.store.Summarize(ctx)
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

// Ping reports whether storage is reachable.
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// publish never fails the caller: the write is already committed.
func (s *LedgerService) publish(ctx context.Context, kind amqp.EventKind, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, kind, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", kind,
			"id", id,
			"error", err)
	}
}

// Close closes storage and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}

	return nil
}
