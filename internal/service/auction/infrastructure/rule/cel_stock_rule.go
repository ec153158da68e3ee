// internal/service/auction/infrastructure/rule/cel_stock_rule.go
package rule

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// ListingFacts 是库存规则可以引用的商品事实，在规则里以 listing.xxx 访问
type ListingFacts struct {
	InStock       bool   `json:"in_stock"`
	ManageStock   bool   `json:"manage_stock"`
	StockQuantity int64  `json:"stock_quantity"`
	Status        string `json:"status"`
}

func (f ListingFacts) asMap() map[string]any {
	return map[string]any{
		"in_stock":       f.InStock,
		"manage_stock":   f.ManageStock,
		"stock_quantity": f.StockQuantity,
		"status":         f.Status,
	}
}

// FactsSource 提供商品的库存事实，found 为 false 表示没有记录
type FactsSource interface {
	Facts(ctx context.Context, productID string) (facts ListingFacts, found bool, err error)
}

// CELStockRule 是 port.StockCheck 的规则引擎实现。
// 规则在创建时编译一次，每次出价只执行求值。
type CELStockRule struct {
	source  FactsSource
	program cel.Program
	rule    string
}

// NewCELStockRule 编译规则表达式，表达式必须返回 bool
func NewCELStockRule(expr string, source FactsSource) (*CELStockRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("listing", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile stock rule %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("stock rule %q must return bool, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build stock rule program: %w", err)
	}
	return &CELStockRule{source: source, program: prg, rule: expr}, nil
}

// IsAvailable 没有库存记录的商品视为不可售
func (r *CELStockRule) IsAvailable(ctx context.Context, productID string) (bool, error) {
	facts, found, err := r.source.Facts(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("load listing facts of %s: %w", productID, err)
	}
	if !found {
		return false, nil
	}
	return r.Evaluate(ctx, facts)
}

// Evaluate 对一组事实执行规则
func (r *CELStockRule) Evaluate(ctx context.Context, facts ListingFacts) (bool, error) {
	out, _, err := r.program.ContextEval(ctx, map[string]any{"listing": facts.asMap()})
	if err != nil {
		return false, fmt.Errorf("evaluate stock rule %q: %w", r.rule, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("stock rule %q returned %T", r.rule, out.Value())
	}
	return ok, nil
}
