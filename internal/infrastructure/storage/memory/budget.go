package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/approval"
	"procura/internal/domain/budget"
	"procura/internal/domain/supplier"
)

// BudgetLines returns the budget line repository.
func (s *Store) BudgetLines() budget.Repository { return budgetRepo{s} }

// Approvals returns the approval trail repository.
func (s *Store) Approvals() approval.Repository { return approvalRepo{s} }

// Suppliers returns the supplier repository.
func (s *Store) Suppliers() supplier.Repository { return supplierRepo{s} }

type budgetRepo struct{ s *Store }

func detachBudgetLine(l budget.Line) budget.Line {
	l.Approvals = nil
	return l
}

func (r budgetRepo) Create(ctx context.Context, line *budget.Line) error {
	return r.s.do(ctx, func(st *state) error {
		return insert(st.budgetLines, "budget_line", line.ID, detachBudgetLine(*line))
	})
}

func (r budgetRepo) Update(ctx context.Context, line *budget.Line) error {
	return r.s.do(ctx, func(st *state) error {
		old, err := find(st.budgetLines, "budget_line", line.ID)
		if err != nil {
			return err
		}
		return update(st.budgetLines, "budget_line", line.ID, line, func(v budget.Line) budget.Line {
			v.Committed = old.Committed
			v.Spent = old.Spent
			v.Available = v.AvailableAmount()
			return detachBudgetLine(v)
		})
	})
}

func (r budgetRepo) SaveBalances(ctx context.Context, line *budget.Line) error {
	return r.s.do(ctx, func(st *state) error {
		old, err := find(st.budgetLines, "budget_line", line.ID)
		if err != nil {
			return err
		}
		return update(st.budgetLines, "budget_line", line.ID, line, func(v budget.Line) budget.Line {
			old.Committed = v.Committed
			old.Spent = v.Spent
			old.Available = v.Available
			old.Version = v.Version
			return old
		})
	})
}

func (r budgetRepo) Delete(ctx context.Context, lineID id.ID) error {
	return r.s.do(ctx, func(st *state) error {
		return markDeleted(st.budgetLines, "budget_line", lineID, func(l *budget.Line) { l.DeletionMark = true })
	})
}

func (r budgetRepo) GetByID(ctx context.Context, lineID id.ID) (*budget.Line, error) {
	var out *budget.Line
	err := r.s.do(ctx, func(st *state) error {
		v, err := find(st.budgetLines, "budget_line", lineID)
		if err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

func (r budgetRepo) GetForUpdate(ctx context.Context, lineID id.ID) (*budget.Line, error) {
	return r.GetByID(ctx, lineID)
}

func (r budgetRepo) List(ctx context.Context, f budget.ListFilter) (domain.ListResult[*budget.Line], error) {
	var out domain.ListResult[*budget.Line]
	err := r.s.do(ctx, func(st *state) error {
		var items []*budget.Line
		for _, v := range st.budgetLines {
			if !matchCommon(f.ListFilter, v.Number, string(v.Status), v.Department, v.DeletionMark) {
				continue
			}
			if f.FiscalYear != 0 && f.FiscalYear != v.FiscalYear {
				continue
			}
			if f.Category != "" && f.Category != v.Category {
				continue
			}
			line := v
			items = append(items, &line)
		}
		out = page(items, f.ListFilter,
			func(l *budget.Line) time.Time { return l.CreatedAt },
			func(l *budget.Line) string { return l.Number })
		return nil
	})
	return out, err
}

func (r budgetRepo) AppendEntry(ctx context.Context, entry *budget.Entry) error {
	return r.s.do(ctx, func(st *state) error {
		st.entries = append(st.entries, *entry)
		return nil
	})
}

func (r budgetRepo) ListEntries(ctx context.Context, lineID id.ID) ([]*budget.Entry, error) {
	var out []*budget.Entry
	err := r.s.do(ctx, func(st *state) error {
		for _, e := range st.entries {
			if e.BudgetLineID == lineID {
				entry := e
				out = append(out, &entry)
			}
		}
		return nil
	})
	return out, err
}

type approvalRepo struct{ s *Store }

func (r approvalRepo) GetTrail(ctx context.Context, documentType string, documentID id.ID) (approval.Trail, error) {
	var out approval.Trail
	err := r.s.do(ctx, func(st *state) error {
		for _, a := range st.approvals {
			if a.DocumentType == documentType && a.DocumentID == documentID {
				rec := a
				out = append(out, &rec)
			}
		}
		slices.SortFunc(out, func(a, b *approval.Approval) int {
			if a.Round != b.Round {
				return a.Round - b.Round
			}
			return a.Seq - b.Seq
		})
		return nil
	})
	return out, err
}

func (r approvalRepo) SaveTrail(ctx context.Context, trail approval.Trail) error {
	return r.s.do(ctx, func(st *state) error {
		for _, a := range trail {
			st.approvals[a.ID] = *a
		}
		return nil
	})
}

type supplierRepo struct{ s *Store }

func (r supplierRepo) Create(ctx context.Context, sup *supplier.Supplier) error {
	return r.s.do(ctx, func(st *state) error {
		return insert(st.suppliers, "supplier", sup.ID, *sup)
	})
}

func (r supplierRepo) GetByID(ctx context.Context, supplierID id.ID) (*supplier.Supplier, error) {
	var out *supplier.Supplier
	err := r.s.do(ctx, func(st *state) error {
		v, err := find(st.suppliers, "supplier", supplierID)
		if err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

func (r supplierRepo) GetByCode(ctx context.Context, code string) (*supplier.Supplier, error) {
	var out *supplier.Supplier
	err := r.s.do(ctx, func(st *state) error {
		for _, v := range st.suppliers {
			if v.Code == code {
				sup := v
				out = &sup
				return nil
			}
		}
		return notFound("supplier", code)
	})
	return out, err
}

func (r supplierRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*supplier.Supplier], error) {
	var out domain.ListResult[*supplier.Supplier]
	err := r.s.do(ctx, func(st *state) error {
		var items []*supplier.Supplier
		search := strings.ToLower(f.Search)
		for _, v := range st.suppliers {
			if search != "" &&
				!strings.Contains(strings.ToLower(v.Code), search) &&
				!strings.Contains(strings.ToLower(v.Name), search) {
				continue
			}
			sup := v
			items = append(items, &sup)
		}
		out = page(items, f,
			func(s *supplier.Supplier) time.Time { return s.CreatedAt },
			func(s *supplier.Supplier) string { return s.Code })
		return nil
	})
	return out, err
}
