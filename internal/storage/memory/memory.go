package memory

import (
	"context"
	"fmt"
	"sync"

	"ledger/internal/core"
)

// Store is a process-local ledger with the same contract as the SQLite repository.
// It checks the table constraints itself and never reuses an id.
type Store struct {
	mu     sync.Mutex
	cats   []core.Category
	catIDs map[int64]struct{}
	strict bool
	items  map[int64]core.Transaction
	order  []int64
	nextID int64
}

// Option configures a Store.
type Option func(*Store)

// WithStrictCategoryRefs rejects transactions whose category is not a known category id.
func WithStrictCategoryRefs(strict bool) Option {
	return func(s *Store) {
		s.strict = strict
	}
}

// DefaultCategories matches the rows seeded by the SQLite migrations.
func DefaultCategories() []core.Category {
	return []core.Category{
		{ID: 1, Name: "Salary", Type: core.Income},
		{ID: 2, Name: "Freelance", Type: core.Income},
		{ID: 3, Name: "Interest", Type: core.Income},
		{ID: 4, Name: "Rent", Type: core.Expense},
		{ID: 5, Name: "Groceries", Type: core.Expense},
		{ID: 6, Name: "Utilities", Type: core.Expense},
		{ID: 7, Name: "Transport", Type: core.Expense},
		{ID: 8, Name: "Dining", Type: core.Expense},
		{ID: 9, Name: "Health", Type: core.Expense},
		{ID: 10, Name: "Other", Type: core.Expense},
	}
}

func New(cats []core.Category, opts ...Option) *Store {
	s := &Store{
		cats:   dedupe(cats),
		catIDs: make(map[int64]struct{}),
		items:  make(map[int64]core.Transaction),
		nextID: 1,
	}
	for _, c := range s.cats {
		s.catIDs[c.ID] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) CreateTransaction(_ context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w: %w", core.ErrConstraint, err)
	}
	if err := s.checkCategory(in.Category); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := in.Record(s.nextID)
	s.nextID++
	s.items[tx.ID] = tx
	s.order = append(s.order, tx.ID)
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.items[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w: %w", id, core.ErrConstraint, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	if err := s.checkCategory(in.Category); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	tx := in.Record(id)
	s.items[id] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Summarize(_ context.Context) (core.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := map[core.TransactionType]float64{}
	for _, tx := range s.items {
		totals[tx.Type] += tx.Amount
	}
	var rows []core.TypeTotal
	for t, total := range totals {
		rows = append(rows, core.TypeTotal{Type: t, Total: total})
	}
	return core.NewSummary(rows), nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

// checkCategory enforces the category reference when strict; the category set never changes.
func (s *Store) checkCategory(id *int64) error {
	if !s.strict || id == nil {
		return nil
	}
	if _, ok := s.catIDs[*id]; !ok {
		return fmt.Errorf("%w: category %d does not exist", core.ErrConstraint, *id)
	}
	return nil
}

// dedupe drops categories with a repeated id or an invalid type, preserving input order.
func dedupe(in []core.Category) []core.Category {
	seen := map[int64]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		if c.Name == "" || !c.Type.Valid() {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
