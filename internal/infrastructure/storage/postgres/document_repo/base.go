// Package document_repo provides PostgreSQL implementations of the workflow document repositories.
package document_repo

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/infrastructure/storage/postgres"
)

// Document is the header contract every versioned row satisfies.
type Document interface {
	GetID() id.ID
	GetVersion() int
	SetVersion(v int)
}

// immutableCols are never written by Update.
var immutableCols = []string{"id", "number", "created_at", "created_by", "version"}

// BaseDocumentRepo provides common CRUD operations for document headers.
type BaseDocumentRepo[T Document] struct {
	txm        *postgres.TxManager
	entity     string
	tableName  string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a base repository over tableName.
func NewBaseDocumentRepo[T Document](
	txm *postgres.TxManager,
	entity string,
	tableName string,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txm:        txm,
		entity:     entity,
		tableName:  tableName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Querier returns the transaction in ctx or the pool.
func (r *BaseDocumentRepo[T]) Querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

// Create inserts a new document header.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, doc T) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %s", r.entity)
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.Builder().Insert(r.tableName).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict(r.entity+" already exists").WithDetail("id", doc.GetID().String()).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes every mutable header column with an optimistic version check.
func (r *BaseDocumentRepo[T]) Update(ctx context.Context, doc T) error {
	return r.UpdateColumns(ctx, doc, r.MutableCols(), nil)
}

// UpdateColumns writes cols of doc plus extra when the stored version equals
// doc's, then advances the version on both.
func (r *BaseDocumentRepo[T]) UpdateColumns(ctx context.Context, doc T, cols []string, extra map[string]any) error {
	data := postgres.StructToMap(doc)
	set := make(map[string]any, len(cols)+len(extra))
	for _, col := range cols {
		if val, ok := data[col]; ok {
			set[col] = val
		}
	}
	for col, val := range extra {
		set[col] = val
	}
	if len(set) == 0 {
		return fmt.Errorf("update %s: no columns to write", r.tableName)
	}

	version := doc.GetVersion()
	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(set).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": doc.GetID()}).
		Where(squirrel.Eq{"version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entity, doc.GetID())
	}

	doc.SetVersion(version + 1)
	return nil
}

// MutableCols returns every selected column except the immutable header ones.
func (r *BaseDocumentRepo[T]) MutableCols() []string {
	cols := make([]string, 0, len(r.selectCols))
	for _, col := range r.selectCols {
		if !slices.Contains(immutableCols, col) {
			cols = append(cols, col)
		}
	}
	return cols
}

// Delete soft-deletes a document.
func (r *BaseDocumentRepo[T]) Delete(ctx context.Context, docID id.ID) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("deletion_mark", true).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": docID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entity, docID.String())
	}
	return nil
}

// BaseSelect selects every column of the table.
func (r *BaseDocumentRepo[T]) BaseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(r.tableName)
}

// FindOne returns the single row selected by q.
func (r *BaseDocumentRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder, key any) (T, error) {
	doc := r.newFn()
	sql, args, err := q.ToSql()
	if err != nil {
		return doc, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.Querier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return doc, apperror.NewNotFound(r.entity, key)
		}
		return doc, fmt.Errorf("get %s: %w", r.entity, err)
	}
	return doc, nil
}

// GetByID retrieves a document by ID, including soft-deleted ones.
func (r *BaseDocumentRepo[T]) GetByID(ctx context.Context, docID id.ID) (T, error) {
	return r.FindOne(ctx, r.BaseSelect().Where(squirrel.Eq{"id": docID}), docID.String())
}

// GetForUpdate retrieves a document under a row lock held until the transaction ends.
func (r *BaseDocumentRepo[T]) GetForUpdate(ctx context.Context, docID id.ID) (T, error) {
	return r.FindOne(ctx, r.BaseSelect().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID.String())
}

// FindAll returns every row selected by q.
func (r *BaseDocumentRepo[T]) FindAll(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []T
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.entity, err)
	}
	return items, nil
}

// filterSelect applies the shared list filter fields.
func (r *BaseDocumentRepo[T]) filterSelect(filter domain.ListFilter) squirrel.SelectBuilder {
	q := r.BaseSelect()
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Department != "" && slices.Contains(r.selectCols, "department") {
		q = q.Where(squirrel.Eq{"department": filter.Department})
	}
	return q
}

// List retrieves a page of documents. where adds repository-specific conditions.
func (r *BaseDocumentRepo[T]) List(ctx context.Context, filter domain.ListFilter, where ...squirrel.Sqlizer) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.filterSelect(filter)
	for _, w := range where {
		q = q.Where(w)
	}

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.Querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", r.entity, err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy, "number DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	items, err := r.FindAll(ctx, q)
	if err != nil {
		return result, err
	}
	if items == nil {
		items = []T{}
	}
	result.Items = items
	return result, nil
}

func (r *BaseDocumentRepo[T]) parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" || !slices.Contains(r.selectCols, field) {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}
	return field + " " + direction, nil
}
