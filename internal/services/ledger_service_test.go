package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/storage/memory"
)

type published struct {
	kind amqp.EventKind
	id   int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
	closed bool
}

func (f *fakePublisher) PublishEvent(_ context.Context, kind amqp.EventKind, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{kind, id})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func ptr[T any](v T) *T { return &v }

func validInput(amount float64) core.TransactionInput {
	return core.TransactionInput{
		Type:   ptr(core.Expense),
		Amount: &amount,
		Date:   ptr("2024-02-01"),
	}
}

func TestLedgerServicePublishesOnWrites(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(nil), pub)
	ctx := context.Background()

	tx, err := svc.CreateTransaction(ctx, validInput(10))
	require.NoError(t, err)
	_, err = svc.UpdateTransaction(ctx, tx.ID, validInput(12))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTransaction(ctx, tx.ID))

	assert.Equal(t, []published{
		{amqp.TransactionCreated, tx.ID},
		{amqp.TransactionUpdated, tx.ID},
		{amqp.TransactionDeleted, tx.ID},
	}, pub.events)
}

func TestLedgerServiceNoEventOnFailure(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(nil), pub)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, core.TransactionInput{Amount: ptr(1.0)})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.UpdateTransaction(ctx, 99, validInput(1))
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteTransaction(ctx, 99), core.ErrNotFound)
	assert.Empty(t, pub.events)
}

func TestLedgerServicePublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewLedgerService(memory.New(nil), pub)
	ctx := context.Background()

	tx, err := svc.CreateTransaction(ctx, validInput(5))
	require.NoError(t, err)

	got, err := svc.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
}

func TestLedgerServiceWithoutPublisher(t *testing.T) {
	svc := NewLedgerService(memory.New(memory.DefaultCategories()), nil)
	ctx := context.Background()

	_, err := svc.CreateTransaction(ctx, validInput(40))
	require.NoError(t, err)

	sum, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Summary{TotalExpenses: 40, Balance: -40}, sum)

	list, err := svc.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	cats, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cats)

	assert.NoError(t, svc.Ping(ctx))
	assert.NoError(t, svc.Close())
}

func TestLedgerServiceCloseClosesPublisher(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(nil), pub)

	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)
}

func TestLedgerServiceErrorsNameTheOperationOnce(t *testing.T) {
	svc := NewLedgerService(memory.New(memory.DefaultCategories(), memory.WithStrictCategoryRefs(true)), nil)
	ctx := context.Background()

	in := validInput(10)
	in.Category = ptr(int64(12345))
	_, err := svc.CreateTransaction(ctx, in)
	require.ErrorIs(t, err, core.ErrConstraint)
	assert.Equal(t, "create transaction: rejected by schema: category 12345 does not exist", err.Error())

	_, err = svc.GetTransaction(ctx, 42)
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "transaction not found", err.Error())
}
