package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/domain/approval"
	"procura/internal/infrastructure/storage/postgres"
)

const approvalsTable = "doc_approvals"

var _ approval.Repository = (*ApprovalRepo)(nil)

// ApprovalRepo implements approval.Repository over one table shared by all document types.
type ApprovalRepo struct {
	txm  *postgres.TxManager
	cols []string
}

// NewApprovalRepo creates an approval trail repository.
func NewApprovalRepo(txm *postgres.TxManager) *ApprovalRepo {
	return &ApprovalRepo{txm: txm, cols: postgres.ExtractDBColumns[approval.Approval]()}
}

func (r *ApprovalRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// GetTrail returns every round of a document ordered by round and seq.
func (r *ApprovalRepo) GetTrail(ctx context.Context, documentType string, documentID id.ID) (approval.Trail, error) {
	sql, args, err := r.builder().
		Select(r.cols...).
		From(approvalsTable).
		Where(squirrel.Eq{"document_type": documentType, "document_id": documentID}).
		OrderBy("round", "seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var trail approval.Trail
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &trail, sql, args...); err != nil {
		return nil, fmt.Errorf("get approval trail: %w", err)
	}
	return trail, nil
}

// SaveTrail upserts every record. Only the decision columns change after insert.
func (r *ApprovalRepo) SaveTrail(ctx context.Context, trail approval.Trail) error {
	if len(trail) == 0 {
		return nil
	}

	q := r.builder().Insert(approvalsTable).Columns(r.cols...)
	for _, a := range trail {
		q = q.Values(postgres.RowValues(a, r.cols)...)
	}
	updates := []string{"approver_id", "decision", "decided_at", "comments"}
	set := make([]string, len(updates))
	for i, c := range updates {
		set[i] = c + " = EXCLUDED." + c
	}

	sql, args, err := q.Suffix("ON CONFLICT (id) DO UPDATE SET " + strings.Join(set, ", ")).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save approval trail: %w", err)
	}
	return nil
}
