package canon

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/cel-go/cel"
)

// VolatileFilter strips fields known to fluctuate between otherwise-
// identical observations (a rotating timestamp embedded in a tool
// description, for example) before an item is sorted and hashed.
//
// This resolves the open question left by the stub `remove_volatile_fields`
// in the implementation this package is grounded on: the spec assumes no
// filtering happens by default, so the zero value of this interface (nil)
// must behave identically to no filter at all — callers pass nil rather
// than a no-op implementation.
type VolatileFilter interface {
	// Filter is called once per decoded capability item, before sorting.
	// family is one of "tools", "resources", "resource_templates",
	// "prompts". Implementations should return v unchanged if they have
	// nothing to strip for that family.
	Filter(family string, v any) any
}

// maxExpressionLength bounds the CEL expression length accepted from
// configuration, mirroring the policy evaluator this filter is adapted
// from.
const maxExpressionLength = 1024

// evalTimeout bounds a single CEL evaluation.
const evalTimeout = 5 * time.Second

// CELVolatileFilter strips top-level fields from fingerprint items as
// instructed by a CEL expression evaluated once per item. The expression
// receives two variables, `family` (string) and `item` (a map of the
// decoded item), and must evaluate to a list of field names to drop.
type CELVolatileFilter struct {
	env        *cel.Env
	program    cel.Program
	expression string
}

// NewCELVolatileFilter compiles expr against an environment exposing
// `family` and `item`. Returns an error if expr is empty, too long, or
// fails to compile. The expression's result type is not checked here; a
// result that does not convert to a list of strings leaves the item
// unchanged when Filter runs.
func NewCELVolatileFilter(expr string) (*CELVolatileFilter, error) {
	if expr == "" {
		return nil, fmt.Errorf("canon: empty volatile-field expression")
	}
	if len(expr) > maxExpressionLength {
		return nil, fmt.Errorf("canon: expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}

	env, err := cel.NewEnv(
		cel.Variable("family", cel.StringType),
		cel.Variable("item", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("canon: building CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("canon: compiling volatile-field expression: %w", issues.Err())
	}

	prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, fmt.Errorf("canon: building CEL program: %w", err)
	}

	return &CELVolatileFilter{env: env, program: prg, expression: expr}, nil
}

// Filter evaluates the compiled expression for the item and strips every
// returned field name from its top level. Non-map items and evaluation
// errors pass through unchanged — a misbehaving filter expression must
// never corrupt the fingerprint by panicking or silently dropping an item.
func (f *CELVolatileFilter) Filter(family string, v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := f.program.ContextEval(ctx, map[string]any{
		"family": family,
		"item":   obj,
	})
	if err != nil {
		return v
	}

	native, err := result.ConvertToNative(reflect.TypeOf([]string{}))
	if err != nil {
		return v
	}
	names, ok := native.([]string)
	if !ok {
		return v
	}
	return stripFields(obj, names)
}

// stripFields returns a shallow copy of obj with the named top-level keys
// removed.
func stripFields(obj map[string]any, names []string) map[string]any {
	if len(names) == 0 {
		return obj
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, skip := drop[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}
