package engine

import (
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
)

// ExpressionEvaluator evaluates a JSONata-compatible expression string
// against a data context (C1, spec.md §4.1). It is implemented over
// github.com/expr-lang/expr the way the teacher's
// runtime/engine/yaml/evaluator.go does: expr.Env(ctx) plus
// AllowUndefinedVariables so a missing field evaluates to nil instead of
// failing compilation. expr-lang has no native JSONata dialect, so `$`
// sigil forms spec.md §6/§9 require ($ root references, $-prefixed
// function calls) are rewritten into plain expr-lang syntax before
// compiling; $keys and $sum are registered here to back $keys(...)/
// $sum(...) once translated. JSONata's `seq.({...})` block construct
// (spec.md §9's dog-breeds finalTransform) is not a string rewrite at
// all — it maps the object template once per element of seq, so it is
// evaluated directly in evaluateBlockConstruct rather than translated.
type ExpressionEvaluator struct{}

func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{}
}

var exprFunctions = []expr.Option{
	expr.Function("keys", func(params ...any) (any, error) {
		m, ok := params[0].(map[string]any)
		if !ok {
			return []any{}, nil
		}
		out := make([]any, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		return out, nil
	}),
	expr.Function("sum", func(params ...any) (any, error) {
		seq, ok := params[0].([]any)
		if !ok {
			return 0.0, nil
		}
		var total float64
		for _, v := range seq {
			total += toFloat(v)
		}
		return total, nil
	}),
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

var (
	// reDollarCall strips the $ sigil off a JSONata function call
	// ($keys(...), $sum(...)) so expr-lang sees a plain identifier call.
	reDollarCall = regexp.MustCompile(`\$([A-Za-z_][A-Za-zA-Z0-9_]*)\(`)
	// reRootDot strips a "$." root-path prefix ($.message -> message);
	// the flattened ValueStore already exposes those fields as top-level
	// identifiers, so no further rewriting of the path is needed.
	reRootDot = regexp.MustCompile(`\$\.`)
	// reObjectConstruct recognizes JSONata's `seq.({...})` block
	// construct and captures the sequence reference (group 1) and the
	// object template (group 2) separately, so Evaluate can map the
	// template once per element of seq instead of discarding seq and
	// evaluating the template once against the flat context.
	reObjectConstruct = regexp.MustCompile(`^([\w.]+)\.\(\s*(\{[\s\S]*\})\s*\)$`)
)

// Evaluate runs expr against ctx. An expression of "$" returns the whole
// context unchanged (spec.md §4.1 contract); undefined fields propagate as
// nil rather than erroring.
func (e *ExpressionEvaluator) Evaluate(expression string, ctx map[string]any) (any, error) {
	if expression == "" || expression == "$" {
		return ctx, nil
	}

	pretranslated := reDollarCall.ReplaceAllString(expression, "$1(")
	pretranslated = reRootDot.ReplaceAllString(pretranslated, "")

	if m := reObjectConstruct.FindStringSubmatch(strings.TrimSpace(pretranslated)); m != nil {
		return e.evaluateBlockConstruct(m[1], m[2], ctx)
	}

	env := make(map[string]any, len(ctx)+1)
	for k, v := range ctx {
		env[k] = v
	}
	env["root"] = ctx

	translated := strings.ReplaceAll(pretranslated, "$", "root")

	opts := append([]expr.Option{
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	}, exprFunctions...)

	program, err := expr.Compile(translated, opts...)
	if err != nil {
		return nil, WrapError(KindExpression, "", err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, WrapError(KindExpression, "", err)
	}
	return result, nil
}

// evaluateBlockConstruct implements JSONata's `seq.({...})` block
// construct: seqExpr is evaluated once against ctx to produce the
// sequence, then body (an object template) is evaluated once per
// element, in a context where that element's own fields shadow the
// outer ctx. This is how a LOOP step's per-iteration loopValue survives
// into a later finalTransform even though the Step Runner's per-iteration
// ctx' itself is discarded once the iteration completes (step_runner.go's
// runLoop folds loopValue/loopIndex back onto each element's transformed
// output for exactly this reason — see mergeLoopBinding).
func (e *ExpressionEvaluator) evaluateBlockConstruct(seqExpr, body string, ctx map[string]any) (any, error) {
	seqVal, err := e.Evaluate(seqExpr, ctx)
	if err != nil {
		return nil, err
	}

	items := toSequence(seqVal)
	out := make([]any, len(items))
	for i, item := range items {
		elemCtx := make(map[string]any, len(ctx)+2)
		for k, v := range ctx {
			elemCtx[k] = v
		}
		if m, ok := item.(map[string]any); ok {
			for k, v := range m {
				elemCtx[k] = v
			}
		} else {
			elemCtx["value"] = item
		}

		mapped, err := e.Evaluate(body, elemCtx)
		if err != nil {
			return nil, err
		}
		out[i] = mapped
	}
	return out, nil
}

// EvalResult is the outcome of EvaluateWithSchema.
type EvalResult struct {
	Success bool
	Data    any
	Error   string
}

// EvaluateWithSchema evaluates expression against ctx and, if schema is
// non-nil, validates the result against it. Evaluation failure and
// validation failure are both reported as Success=false but are
// distinguishable by the diagnostic text, per spec.md §4.1.
func (e *ExpressionEvaluator) EvaluateWithSchema(expression string, ctx map[string]any, schema map[string]any) EvalResult {
	data, err := e.Evaluate(expression, ctx)
	if err != nil {
		return EvalResult{Success: false, Error: "evaluation failed: " + err.Error()}
	}

	if len(schema) == 0 {
		return EvalResult{Success: true, Data: data}
	}

	if err := ValidateAgainstSchema(data, schema); err != nil {
		return EvalResult{Success: false, Data: data, Error: "validation failed: " + err.Error()}
	}
	return EvalResult{Success: true, Data: data}
}
