package approval

import (
	"fmt"
	"slices"

	"github.com/google/cel-go/cel"
	"github.com/shopspring/decimal"

	"procura/internal/core/types"
)

// Rule requires Level whenever the CEL condition When evaluates to true.
//
// Conditions see these variables (amounts are integer minor units):
//
//	document_type string, department string, category string,
//	amount int, requester_limit int, hod_limit int, principal_limit int,
//	emergency bool, single_source bool
type Rule struct {
	Name  string `json:"name"`
	Level Level  `json:"level"`
	When  string `json:"when"`
}

// RouterConfig is the rule table and the thresholds it refers to.
type RouterConfig struct {
	// DefaultRequesterLimit applies when the input carries no personal limit.
	DefaultRequesterLimit types.Money
	HODLimit              types.Money
	PrincipalLimit        types.Money
	Rules                 []Rule
}

// DefaultRules escalates by amount thresholds and forces principal oversight
// for emergency and single-source purchases and for budget line reviews.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "above-requester-limit", Level: LevelHOD, When: "amount > requester_limit"},
		{Name: "above-hod-limit", Level: LevelPrincipal, When: "amount > hod_limit"},
		{Name: "above-principal-limit", Level: LevelBoard, When: "amount > principal_limit"},
		{Name: "emergency", Level: LevelPrincipal, When: "emergency"},
		{Name: "single-source", Level: LevelPrincipal, When: "single_source"},
		{Name: "budget-line-review", Level: LevelPrincipal, When: `document_type == "budget_line"`},
	}
}

// DefaultRouterConfig returns the standard thresholds with DefaultRules.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		DefaultRequesterLimit: decimal.NewFromInt(1_000),
		HODLimit:              decimal.NewFromInt(10_000),
		PrincipalLimit:        decimal.NewFromInt(100_000),
		Rules:                 DefaultRules(),
	}
}

// Input describes the document being routed.
type Input struct {
	DocumentType string
	Department   string
	Category     string
	Amount       types.Money
	// RequesterLimit is the requester's personal approval limit; nil means the default.
	RequesterLimit *types.Money
	Emergency      bool
	SingleSource   bool
}

// Reason records which rule demanded which level.
type Reason struct {
	Rule  string `json:"rule"`
	Level Level  `json:"level"`
}

// Chain is the ordered list of levels that must approve, lowest first.
type Chain struct {
	Levels  []Level  `json:"levels"`
	Reasons []Reason `json:"reasons,omitempty"`
}

// Highest returns the top level of the chain.
func (c Chain) Highest() Level {
	return c.Levels[len(c.Levels)-1]
}

type compiledRule struct {
	Rule
	program cel.Program
}

// Router evaluates the rule table. It holds no mutable state after construction,
// so Route is safe for concurrent use and deterministic.
type Router struct {
	cfg   RouterConfig
	rules []compiledRule
}

// NewRouter compiles every rule condition once.
func NewRouter(cfg RouterConfig) (*Router, error) {
	env, err := cel.NewEnv(
		cel.Variable("document_type", cel.StringType),
		cel.Variable("department", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("amount", cel.IntType),
		cel.Variable("requester_limit", cel.IntType),
		cel.Variable("hod_limit", cel.IntType),
		cel.Variable("principal_limit", cel.IntType),
		cel.Variable("emergency", cel.BoolType),
		cel.Variable("single_source", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("approval rules environment: %w", err)
	}

	r := &Router{cfg: cfg, rules: make([]compiledRule, 0, len(cfg.Rules))}
	for _, rule := range cfg.Rules {
		if !rule.Level.Valid() {
			return nil, fmt.Errorf("approval rule %q: unknown level %q", rule.Name, rule.Level)
		}
		ast, issues := env.Compile(rule.When)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("approval rule %q: %w", rule.Name, issues.Err())
		}
		if ast.OutputType().String() != cel.BoolType.String() {
			return nil, fmt.Errorf("approval rule %q: condition must be boolean, got %s", rule.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("approval rule %q: %w", rule.Name, err)
		}
		r.rules = append(r.rules, compiledRule{Rule: rule, program: prg})
	}
	return r, nil
}

// MustNewRouter is NewRouter that panics on a bad rule table.
func MustNewRouter(cfg RouterConfig) *Router {
	r, err := NewRouter(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// Route computes the required chain for in.
//
// Every matching rule contributes a level; the highest contributed level wins
// and the chain contains each level from requester up to it exactly once.
func (r *Router) Route(in Input) (Chain, error) {
	requesterLimit := r.cfg.DefaultRequesterLimit
	if in.RequesterLimit != nil {
		requesterLimit = *in.RequesterLimit
	}

	vars := map[string]any{
		"document_type":   in.DocumentType,
		"department":      in.Department,
		"category":        in.Category,
		"amount":          types.MinorUnits(in.Amount),
		"requester_limit": types.MinorUnits(requesterLimit),
		"hod_limit":       types.MinorUnits(r.cfg.HODLimit),
		"principal_limit": types.MinorUnits(r.cfg.PrincipalLimit),
		"emergency":       in.Emergency,
		"single_source":   in.SingleSource,
	}

	top := LevelRequester
	var reasons []Reason
	for _, rule := range r.rules {
		out, _, err := rule.program.Eval(vars)
		if err != nil {
			return Chain{}, fmt.Errorf("evaluate approval rule %q: %w", rule.Name, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return Chain{}, fmt.Errorf("approval rule %q returned %T", rule.Name, out.Value())
		}
		if !matched {
			continue
		}
		reasons = append(reasons, Reason{Rule: rule.Name, Level: rule.Level})
		if rule.Level.Rank() > top.Rank() {
			top = rule.Level
		}
	}

	return Chain{Levels: slices.Clone(Levels[:top.Rank()+1]), Reasons: reasons}, nil
}
