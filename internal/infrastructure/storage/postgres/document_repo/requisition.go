package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/documents/requisition"
	"procura/internal/infrastructure/storage/postgres"
)

const (
	requisitionsTable     = "doc_requisitions"
	requisitionLinesTable = "doc_requisition_lines"
)

var _ requisition.Repository = (*RequisitionRepo)(nil)

// RequisitionRepo implements requisition.Repository.
type RequisitionRepo struct {
	*BaseDocumentRepo[*requisition.Requisition]
	lines *lineTable[requisition.Line]
}

// NewRequisitionRepo creates a requisition repository.
func NewRequisitionRepo(txm *postgres.TxManager) *RequisitionRepo {
	return &RequisitionRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			"requisition",
			requisitionsTable,
			postgres.ExtractDBColumns[requisition.Requisition](),
			func() *requisition.Requisition { return &requisition.Requisition{} },
		),
		lines: newLineTable(txm, requisitionLinesTable, "requisition_id",
			func(l requisition.Line) id.ID { return l.ID }),
	}
}

// GetLines retrieves the lines of a requisition.
func (r *RequisitionRepo) GetLines(ctx context.Context, docID id.ID) ([]requisition.Line, error) {
	return r.lines.get(ctx, docID)
}

// SaveLines replaces the lines of a requisition.
func (r *RequisitionRepo) SaveLines(ctx context.Context, docID id.ID, lines []requisition.Line) error {
	return r.lines.save(ctx, docID, lines)
}

// List retrieves requisitions with filtering.
func (r *RequisitionRepo) List(ctx context.Context, filter requisition.ListFilter) (domain.ListResult[*requisition.Requisition], error) {
	var where []squirrel.Sqlizer
	if filter.RequesterID != "" {
		where = append(where, squirrel.Eq{"requester_id": filter.RequesterID})
	}
	if filter.BudgetLineID != nil {
		where = append(where, squirrel.Eq{"budget_line_id": *filter.BudgetLineID})
	}
	return r.BaseDocumentRepo.List(ctx, filter.ListFilter, where...)
}
