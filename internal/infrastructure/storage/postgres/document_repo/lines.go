package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/infrastructure/storage/postgres"
)

// lineTable stores the child lines of a document keyed by their own id.
type lineTable[L any] struct {
	txm       *postgres.TxManager
	table     string
	parentCol string
	cols      []string
	lineID    func(L) id.ID
}

func newLineTable[L any](txm *postgres.TxManager, table, parentCol string, lineID func(L) id.ID) *lineTable[L] {
	return &lineTable[L]{
		txm:       txm,
		table:     table,
		parentCol: parentCol,
		cols:      postgres.ExtractDBColumns[L](),
		lineID:    lineID,
	}
}

func (t *lineTable[L]) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// get returns the lines of parentID ordered by line number.
func (t *lineTable[L]) get(ctx context.Context, parentID id.ID) ([]L, error) {
	return t.selectWhere(ctx, squirrel.Eq{t.parentCol: parentID})
}

func (t *lineTable[L]) selectWhere(ctx context.Context, where squirrel.Sqlizer) ([]L, error) {
	sql, args, err := t.builder().
		Select(t.cols...).
		From(t.table).
		Where(where).
		OrderBy(t.parentCol, "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []L
	if err := pgxscan.Select(ctx, t.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get %s: %w", t.table, err)
	}
	return lines, nil
}

// save upserts lines by id and removes lines of parentID no longer present.
func (t *lineTable[L]) save(ctx context.Context, parentID id.ID, lines []L) error {
	queries, err := t.saveQueries(parentID, lines)
	if err != nil {
		return err
	}
	return t.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return t.txm.ExecuteBatch(ctx, queries)
	})
}

func (t *lineTable[L]) saveQueries(parentID id.ID, lines []L) ([]postgres.BatchQuery, error) {
	keep := make([]id.ID, 0, len(lines))
	for _, l := range lines {
		keep = append(keep, t.lineID(l))
	}

	del := t.builder().Delete(t.table).Where(squirrel.Eq{t.parentCol: parentID})
	if len(keep) > 0 {
		del = del.Where(squirrel.NotEq{"id": keep})
	}
	sql, args, err := del.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete lines: %w", err)
	}
	queries := []postgres.BatchQuery{{SQL: sql, Args: args}}

	if len(lines) == 0 {
		return queries, nil
	}

	ins := t.builder().Insert(t.table).Columns(t.cols...)
	for _, l := range lines {
		row := postgres.RowValues(l, t.cols)
		for i, c := range t.cols {
			if c == t.parentCol {
				row[i] = parentID
			}
		}
		ins = ins.Values(row...)
	}
	sql, args, err = ins.Suffix(t.upsertSuffix()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert lines: %w", err)
	}
	return append(queries, postgres.BatchQuery{SQL: sql, Args: args}), nil
}

func (t *lineTable[L]) upsertSuffix() string {
	set := make([]string, 0, len(t.cols))
	for _, c := range t.cols {
		if c == "id" || c == t.parentCol {
			continue
		}
		set = append(set, c+" = EXCLUDED."+c)
	}
	return "ON CONFLICT (id) DO UPDATE SET " + strings.Join(set, ", ")
}
