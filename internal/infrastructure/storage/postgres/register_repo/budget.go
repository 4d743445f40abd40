// Package register_repo provides PostgreSQL storage for the budget ledger:
// balance rows and their append-only journal.
package register_repo

import (
	"context"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/budget"
	"procura/internal/infrastructure/storage/postgres"
	"procura/internal/infrastructure/storage/postgres/document_repo"
)

const (
	budgetLinesTable   = "budget_lines"
	budgetEntriesTable = "budget_ledger_entries"
)

// balanceCols are written only by SaveBalances.
var balanceCols = []string{"committed", "spent", "available"}

var _ budget.Repository = (*BudgetRepo)(nil)

// BudgetRepo implements budget.Repository.
type BudgetRepo struct {
	*document_repo.BaseDocumentRepo[*budget.Line]
	headerCols []string
	entryCols  []string
}

// NewBudgetRepo creates a budget ledger repository.
func NewBudgetRepo(txm *postgres.TxManager) *BudgetRepo {
	base := document_repo.NewBaseDocumentRepo(
		txm,
		"budget_line",
		budgetLinesTable,
		postgres.ExtractDBColumns[budget.Line](),
		func() *budget.Line { return &budget.Line{} },
	)

	var header []string
	for _, col := range base.MutableCols() {
		if !slices.Contains(balanceCols, col) {
			header = append(header, col)
		}
	}

	return &BudgetRepo{
		BaseDocumentRepo: base,
		headerCols:       header,
		entryCols:        postgres.ExtractDBColumns[budget.Entry](),
	}
}

// Update writes header, allocation and status. Available is recomputed from
// the stored balances so a concurrent ledger write is never overwritten.
func (r *BudgetRepo) Update(ctx context.Context, line *budget.Line) error {
	return r.UpdateColumns(ctx, line, r.headerCols, map[string]any{
		"available": squirrel.Expr("? - committed - spent", line.Allocated),
	})
}

// SaveBalances writes committed, spent and available with a version check.
func (r *BudgetRepo) SaveBalances(ctx context.Context, line *budget.Line) error {
	return r.UpdateColumns(ctx, line, append(slices.Clone(balanceCols), "updated_at", "updated_by"), nil)
}

// List retrieves budget lines with filtering.
func (r *BudgetRepo) List(ctx context.Context, filter budget.ListFilter) (domain.ListResult[*budget.Line], error) {
	var where []squirrel.Sqlizer
	if filter.FiscalYear != 0 {
		where = append(where, squirrel.Eq{"fiscal_year": filter.FiscalYear})
	}
	if filter.Category != "" {
		where = append(where, squirrel.Eq{"category": filter.Category})
	}
	return r.BaseDocumentRepo.List(ctx, filter.ListFilter, where...)
}

// AppendEntry writes one journal row.
func (r *BudgetRepo) AppendEntry(ctx context.Context, entry *budget.Entry) error {
	sql, args, err := r.Builder().
		Insert(budgetEntriesTable).
		Columns(r.entryCols...).
		Values(postgres.RowValues(entry, r.entryCols)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ListEntries returns the journal of a line in posting order.
func (r *BudgetRepo) ListEntries(ctx context.Context, lineID id.ID) ([]*budget.Entry, error) {
	sql, args, err := r.Builder().
		Select(r.entryCols...).
		From(budgetEntriesTable).
		Where(squirrel.Eq{"budget_line_id": lineID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []*budget.Entry
	if err := pgxscan.Select(ctx, r.Querier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}
