package transforms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/rpattn/fieldmap/internal/compare"
	"github.com/rpattn/fieldmap/internal/domain"
)

// Evaluator compiles an arithmetic expression over named numeric variables.
// Compilation happens once per step; the program then runs once per row.
type Evaluator interface {
	Compile(expression string, variables []string) (Program, error)
}

// Program evaluates a compiled expression for one set of variable values.
type Program interface {
	Run(vars map[string]any) (float64, error)
}

// ExprEvaluator compiles expressions with expr-lang. Variables are typed
// float64 and % is overloaded to math.Mod so it accepts them.
type ExprEvaluator struct{}

func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{}
}

func (e *ExprEvaluator) Compile(expression string, variables []string) (Program, error) {
	env := make(map[string]any, len(variables))
	for _, name := range variables {
		env[name] = float64(0)
	}
	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AsFloat64(),
		expr.Function("mod", modulo,
			new(func(float64, float64) float64),
			new(func(float64, int) float64),
			new(func(int, float64) float64),
		),
		expr.Operator("%", "mod"),
	)
	if err != nil {
		return nil, err
	}
	return exprProgram{program: program}, nil
}

type exprProgram struct {
	program *vm.Program
}

func (p exprProgram) Run(vars map[string]any) (float64, error) {
	out, err := expr.Run(p.program, vars)
	if err != nil {
		return 0, err
	}
	value, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("expression produced %T", out)
	}
	return value, nil
}

func modulo(params ...any) (any, error) {
	dividend, divisor := cast.ToFloat64(params[0]), cast.ToFloat64(params[1])
	if divisor == 0 {
		return nil, errors.New("modulo by zero")
	}
	return math.Mod(dividend, divisor), nil
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

const currentValueVariable = "value"

// Calculate evaluates an arithmetic template. {n} refers to the n-th
// collected value and {value} to the current value; unmatched placeholders
// and null values read as 0.
type Calculate struct {
	expression    string
	decimalPlaces *int
	inputs        []InputField
	evaluator     Evaluator
	program       Program
	indexes       map[string]int
}

// NewCalculate compiles the expression. A malformed expression is reported
// here with kind ExpressionSyntax, never per row.
func NewCalculate(expression string, decimalPlaces *int, inputs []InputField, evaluator Evaluator) (*Calculate, error) {
	if expression == "" {
		return nil, domain.ConfigError("Calculate requires an expression")
	}
	if decimalPlaces != nil && *decimalPlaces < 0 {
		return nil, domain.ConfigError("Calculate decimal places must not be negative")
	}
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}

	compiled, indexes := rewritePlaceholders(expression)
	variables := []string{currentValueVariable}
	for name := range indexes {
		variables = append(variables, name)
	}
	sort.Strings(variables[1:])
	program, err := evaluator.Compile(compiled, variables)
	if err != nil {
		return nil, &domain.EvaluationError{
			Kind:    domain.ErrorKindExpressionSyntax,
			Message: fmt.Sprintf("invalid expression format: %s", expression),
			Err:     err,
		}
	}
	return &Calculate{
		expression:    expression,
		decimalPlaces: copyIntPtr(decimalPlaces),
		inputs:        CloneInputs(inputs),
		evaluator:     evaluator,
		program:       program,
		indexes:       indexes,
	}, nil
}

// rewritePlaceholders turns {n} into the variable pn and {value} into
// value. Any other placeholder becomes the literal 0.
func rewritePlaceholders(expression string) (string, map[string]int) {
	indexes := make(map[string]int)
	compiled := placeholderPattern.ReplaceAllStringFunc(expression, func(match string) string {
		name := match[1 : len(match)-1]
		if name == currentValueVariable {
			return currentValueVariable
		}
		index, err := strconv.Atoi(name)
		if err != nil || index < 0 {
			return "0"
		}
		variable := "p" + strconv.Itoa(index)
		indexes[variable] = index
		return variable
	})
	return compiled, indexes
}

func (c *Calculate) Kind() Kind { return KindCalculate }

func (c *Calculate) Apply(ctx context.Context, in domain.TransformationResult) domain.TransformationResult {
	if in.WasFailure() {
		return in
	}
	step := stepName(KindCalculate, c.expression)

	values := []any{in.CurrentValue()}
	if len(c.inputs) > 0 {
		resolved, failed := ResolveInputs(ctx, in.Context(), c.inputs)
		if failed != nil {
			return in.WithLogEntry(step).WithFailure(failed.ErrorKind(), failed.ErrorMessage())
		}
		values = resolved
	}

	vars, err := c.variables(in.CurrentValue(), values)
	if err != nil {
		return fail(in, step, err)
	}
	result, err := c.program.Run(vars)
	if err != nil {
		return fail(in, step, &domain.EvaluationError{
			Kind:    domain.ErrorKindEvaluation,
			Message: fmt.Sprintf("evaluate %s", c.expression),
			Err:     err,
		})
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return fail(in, step, domain.NewError(domain.ErrorKindEvaluation, "expression %s is not a finite number", c.expression))
	}
	return in.WithValue(c.round(result), step)
}

func (c *Calculate) variables(current any, values []any) (map[string]any, error) {
	vars := make(map[string]any, len(c.indexes)+1)
	number, err := numericValue(current)
	if err != nil {
		// The current value only matters when the expression reads it.
		if strings.Contains(c.expression, "{"+currentValueVariable+"}") {
			return nil, err
		}
		number = 0
	}
	vars[currentValueVariable] = number
	for name, index := range c.indexes {
		var value any
		if index < len(values) {
			value = values[index]
		}
		number, err := numericValue(value)
		if err != nil {
			return nil, err
		}
		vars[name] = number
	}
	return vars, nil
}

// numericValue reads value as a float64. Integers beyond int64 and any
// other high-precision value fall back to double precision.
func numericValue(value any) (float64, error) {
	if value == nil {
		return 0, nil
	}
	d, ok := compare.ToDecimal(value)
	if !ok {
		return 0, &domain.ConversionError{
			SourceType: domain.InferFieldType(value),
			TargetType: domain.FieldTypeDecimal,
			Value:      value,
			Reason:     "calculation requires numeric values",
		}
	}
	return d.InexactFloat64(), nil
}

func (c *Calculate) round(value float64) any {
	if c.decimalPlaces == nil {
		return value
	}
	rounded := decimal.NewFromFloat(value).Round(int32(*c.decimalPlaces))
	if *c.decimalPlaces == 0 {
		return rounded.IntPart()
	}
	return rounded.InexactFloat64()
}

func (c *Calculate) Clone() Transformation {
	return &Calculate{
		expression:    c.expression,
		decimalPlaces: copyIntPtr(c.decimalPlaces),
		inputs:        CloneInputs(c.inputs),
		evaluator:     c.evaluator,
		program:       c.program,
		indexes:       c.indexes,
	}
}

func (c *Calculate) Spec() domain.TransformationSpec {
	return domain.TransformationSpec{
		Type:          string(KindCalculate),
		Detail:        c.expression,
		DecimalPlaces: copyIntPtr(c.decimalPlaces),
		Inputs:        inputSpecs(c.inputs),
	}
}
