// Package alerts evaluates operator-defined stock alert rules.
// Rules are CEL expressions over a product's aggregate counters, compiled
// once at startup and evaluated on every inventory change. A rule that
// evaluates to true fires an alert.
package alerts

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/events"
	"lotkeeper/internal/domain/inventory"
	"lotkeeper/pkg/logger"
)

// Rule is one named alert condition.
type Rule struct {
	Name string
	// Expression is a CEL boolean over: available, on_hand, on_shelf,
	// reserved, reorder_point, needs_reorder.
	Expression string
}

// DefaultRules are the rules the worker loads when none are configured.
var DefaultRules = []Rule{
	{Name: "out_of_stock", Expression: "available == 0.0"},
	{Name: "needs_reorder", Expression: "needs_reorder"},
	{Name: "reservation_backlog", Expression: "reserved > on_hand + on_shelf"},
}

// Alert is one fired rule for one product.
type Alert struct {
	Rule      string `json:"rule"`
	ProductID id.ID  `json:"productId"`
}

type compiledRule struct {
	name    string
	program cel.Program
}

// Engine holds compiled rules.
type Engine struct {
	rules []compiledRule
}

// NewEngine compiles the given rules. An invalid expression fails startup
// rather than silently never firing.
func NewEngine(rules []Rule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("available", cel.DoubleType),
		cel.Variable("on_hand", cel.DoubleType),
		cel.Variable("on_shelf", cel.DoubleType),
		cel.Variable("reserved", cel.DoubleType),
		cel.Variable("reorder_point", cel.DoubleType),
		cel.Variable("needs_reorder", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	e := &Engine{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		ast, iss := env.Compile(r.Expression)
		if iss.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %q: expression must be boolean, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiledRule{name: r.Name, program: prg})
	}
	return e, nil
}

// Evaluate runs every rule against an aggregate snapshot and returns the
// alerts that fired.
func (e *Engine) Evaluate(agg *inventory.Aggregate) ([]Alert, error) {
	vars := map[string]any{
		"available":     agg.Available().Float64(),
		"on_hand":       agg.QuantityOnHand.Float64(),
		"on_shelf":      agg.QuantityOnShelf.Float64(),
		"reserved":      agg.QuantityReserved.Float64(),
		"reorder_point": agg.ReorderPoint.Float64(),
		"needs_reorder": agg.NeedsReorder(),
	}

	var fired []Alert
	for _, r := range e.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			return nil, fmt.Errorf("eval rule %q: %w", r.name, err)
		}
		hit, ok := out.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("eval rule %q: non-boolean result %T", r.name, out.Value())
		}
		if hit {
			fired = append(fired, Alert{Rule: r.name, ProductID: agg.ProductID})
		}
	}
	return fired, nil
}

// AggregateReader provides the snapshot a change event is evaluated against.
// Satisfied by the inventory service.
type AggregateReader interface {
	GetByProduct(ctx context.Context, productID id.ID) (*inventory.Aggregate, error)
}

// Notifier receives fired alerts. The default notifier logs them.
type Notifier interface {
	Notify(ctx context.Context, a Alert)
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, a Alert) {
	logger.Warn(ctx, "stock alert fired", "rule", a.Rule, "product_id", a.ProductID)
}

// Subscriber re-evaluates a product's rules after each inventory change.
func Subscriber(engine *Engine, aggregates AggregateReader, notifier Notifier) events.Handler {
	return func(ctx context.Context, ev events.InventoryChanged) {
		agg, err := aggregates.GetByProduct(ctx, ev.ProductID)
		if err != nil {
			logger.Error(ctx, "alert evaluation: aggregate read failed",
				"product_id", ev.ProductID, "error", err)
			return
		}
		fired, err := engine.Evaluate(agg)
		if err != nil {
			logger.Error(ctx, "alert evaluation failed",
				"product_id", ev.ProductID, "error", err)
			return
		}
		for _, a := range fired {
			notifier.Notify(ctx, a)
		}
	}
}
