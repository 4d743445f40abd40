package catalog_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/domain"
)

func TestSupplierListQuery(t *testing.T) {
	repo := NewSupplierRepo(nil)

	tests := []struct {
		name     string
		filter   domain.ListFilter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "no filter",
			wantSQL: "SELECT id, code, name, wht_subject, wht_category, active, created_at, created_by FROM cat_suppliers",
		},
		{
			name:     "search matches code or name",
			filter:   domain.ListFilter{Search: "acme"},
			wantSQL:  "SELECT id, code, name, wht_subject, wht_category, active, created_at, created_by FROM cat_suppliers WHERE (code ILIKE $1 OR name ILIKE $2)",
			wantArgs: []any{"%acme%", "%acme%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, len(tt.wantArgs), len(args))
			for i := range tt.wantArgs {
				assert.Equal(t, tt.wantArgs[i], args[i])
			}
		})
	}
}
