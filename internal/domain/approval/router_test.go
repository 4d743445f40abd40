package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/types"
)

func TestRouteByAmount(t *testing.T) {
	router := MustNewRouter(DefaultRouterConfig())

	tests := []struct {
		name   string
		amount string
		want   []Level
	}{
		{name: "within requester limit", amount: "1000", want: []Level{LevelRequester}},
		{name: "one cent above requester limit", amount: "1000.01", want: []Level{LevelRequester, LevelHOD}},
		{name: "at hod limit", amount: "10000", want: []Level{LevelRequester, LevelHOD}},
		{name: "above hod limit", amount: "40000", want: []Level{LevelRequester, LevelHOD, LevelPrincipal}},
		{name: "above principal limit", amount: "250000", want: Levels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := router.Route(Input{DocumentType: DocumentRequisition, Amount: types.MustMoney(tt.amount)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, chain.Levels)
		})
	}
}

func TestRouteCategoryFlagsDeduplicateLevels(t *testing.T) {
	router := MustNewRouter(DefaultRouterConfig())

	chain, err := router.Route(Input{
		DocumentType: DocumentRequisition,
		Amount:       types.MustMoney("50000"),
		Emergency:    true,
		SingleSource: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []Level{LevelRequester, LevelHOD, LevelPrincipal}, chain.Levels)
	assert.Equal(t, LevelPrincipal, chain.Highest())
	assert.Len(t, chain.Reasons, 4)
}

func TestRouteEmergencyForcesPrincipalRegardlessOfAmount(t *testing.T) {
	router := MustNewRouter(DefaultRouterConfig())

	chain, err := router.Route(Input{DocumentType: DocumentRequisition, Amount: types.MustMoney("10"), Emergency: true})
	require.NoError(t, err)
	assert.Equal(t, LevelPrincipal, chain.Highest())
}

func TestRoutePersonalRequesterLimit(t *testing.T) {
	router := MustNewRouter(DefaultRouterConfig())
	limit := types.MustMoney("5000")

	chain, err := router.Route(Input{DocumentType: DocumentRequisition, Amount: types.MustMoney("4000"), RequesterLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, []Level{LevelRequester}, chain.Levels)
}

func TestRouteIsDeterministic(t *testing.T) {
	router := MustNewRouter(DefaultRouterConfig())
	in := Input{DocumentType: DocumentRequisition, Department: "ICT", Amount: types.MustMoney("12345.67"), SingleSource: true}

	first, err := router.Route(in)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := router.Route(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDepartmentSpecificRule(t *testing.T) {
	cfg := DefaultRouterConfig()
	cfg.Rules = append(cfg.Rules, Rule{Name: "ict-capital", Level: LevelBoard, When: `department == "ICT" && category == "capital"`})
	router := MustNewRouter(cfg)

	chain, err := router.Route(Input{DocumentType: DocumentRequisition, Department: "ICT", Category: "capital", Amount: types.MustMoney("500")})
	require.NoError(t, err)
	assert.Equal(t, Levels, chain.Levels)

	chain, err = router.Route(Input{DocumentType: DocumentRequisition, Department: "FIN", Category: "capital", Amount: types.MustMoney("500")})
	require.NoError(t, err)
	assert.Equal(t, []Level{LevelRequester}, chain.Levels)
}

func TestNewRouterRejectsBadRules(t *testing.T) {
	_, err := NewRouter(RouterConfig{Rules: []Rule{{Name: "typo", Level: LevelHOD, When: "amount >"}}})
	assert.Error(t, err)

	_, err = NewRouter(RouterConfig{Rules: []Rule{{Name: "not-bool", Level: LevelHOD, When: "amount + 1"}}})
	assert.Error(t, err)

	_, err = NewRouter(RouterConfig{Rules: []Rule{{Name: "bad-level", Level: "ceo", When: "true"}}})
	assert.Error(t, err)
}
