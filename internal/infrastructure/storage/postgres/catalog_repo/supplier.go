// Package catalog_repo provides PostgreSQL implementations of reference catalogs.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/supplier"
	"procura/internal/infrastructure/storage/postgres"
)

const suppliersTable = "cat_suppliers"

var _ supplier.Repository = (*SupplierRepo)(nil)

// SupplierRepo implements supplier.Repository.
type SupplierRepo struct {
	txm        *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewSupplierRepo creates a supplier repository.
func NewSupplierRepo(txm *postgres.TxManager) *SupplierRepo {
	return &SupplierRepo{
		txm:        txm,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[supplier.Supplier](),
	}
}

// Create inserts a supplier. Codes are unique.
func (r *SupplierRepo) Create(ctx context.Context, s *supplier.Supplier) error {
	sql, args, err := r.builder.Insert(suppliersTable).SetMap(postgres.StructToMap(s)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict("supplier code already exists").WithDetail("code", s.Code).WithCause(err)
		}
		return fmt.Errorf("insert supplier: %w", err)
	}
	return nil
}

func (r *SupplierRepo) findOne(ctx context.Context, where squirrel.Eq, key any) (*supplier.Supplier, error) {
	sql, args, err := r.builder.Select(r.selectCols...).From(suppliersTable).Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s supplier.Supplier
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("supplier", key)
		}
		return nil, fmt.Errorf("get supplier: %w", err)
	}
	return &s, nil
}

// GetByID retrieves a supplier by ID.
func (r *SupplierRepo) GetByID(ctx context.Context, supplierID id.ID) (*supplier.Supplier, error) {
	return r.findOne(ctx, squirrel.Eq{"id": supplierID}, supplierID.String())
}

// GetByCode retrieves a supplier by its unique code.
func (r *SupplierRepo) GetByCode(ctx context.Context, code string) (*supplier.Supplier, error) {
	return r.findOne(ctx, squirrel.Eq{"code": code}, code)
}

// listQuery builds the filtered select shared by the page and its count.
func (r *SupplierRepo) listQuery(filter domain.ListFilter) squirrel.SelectBuilder {
	q := r.builder.Select(r.selectCols...).From(suppliersTable)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"code": pattern},
			squirrel.ILike{"name": pattern},
		})
	}
	return q
}

// List retrieves suppliers ordered by code.
func (r *SupplierRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*supplier.Supplier], error) {
	result := domain.ListResult[*supplier.Supplier]{Limit: filter.Limit, Offset: filter.Offset}
	q := r.listQuery(filter)
	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count suppliers: %w", err)
	}

	q = q.OrderBy("code")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	result.Items = []*supplier.Supplier{}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list suppliers: %w", err)
	}
	return result, nil
}
