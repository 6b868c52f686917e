package core

// Summary is the lifetime aggregate of the ledger.
type Summary struct {
	TotalIncome   float64 `json:"totalIncome"`
	TotalExpenses float64 `json:"totalExpenses"`
	Balance       float64 `json:"balance"`
}

// TypeTotal is one row of the per-type aggregation.
type TypeTotal struct {
	Type  TransactionType
	Total float64
}

// NewSummary folds per-type totals into a Summary. Types absent from totals count as zero.
func NewSummary(totals []TypeTotal) Summary {
	var s Summary
	for _, t := range totals {
		switch t.Type {
		case Income:
			s.TotalIncome += t.Total
		case Expense:
			s.TotalExpenses += t.Total
		}
	}
	s.Balance = s.TotalIncome - s.TotalExpenses
	return s
}
