// Package filter compiles structured filter expressions for memory queries.
//
// Filters are CEL expressions over a small, declared environment:
//
//	tone          string  emotional tone label
//	tags          list    memory tags
//	location_kind string  mental | physical | digital | described
//	location      string  location name
//	content       string  canonical text
//	reflection    string  derived narrative
//
// Example: `tone == "content" && "coffee" in tags`.
//
// A compiled Filter yields two equivalent views: a SQL fragment for the
// database drivers and a CEL-evaluated predicate for the in-memory driver,
// so every backend applies identical semantics.
package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/pkg/errors"

	"github.com/recallio/recall-go/store"
)

// Dialect selects the SQL flavor emitted by Clause.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ErrInvalidFilter wraps every compilation failure so callers can classify
// bad filter input without string matching.
var ErrInvalidFilter = errors.New("invalid filter expression")

var env *cel.Env

func init() {
	var err error
	env, err = cel.NewEnv(
		cel.Variable("tone", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("location_kind", cel.StringType),
		cel.Variable("location", cel.StringType),
		cel.Variable("content", cel.StringType),
		cel.Variable("reflection", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("filter: cel environment: %v", err))
	}
}

// identColumns maps CEL identifiers to memory table columns.
var identColumns = map[string]string{
	"tone":          "emotional_tone",
	"location_kind": "location_kind",
	"location":      "location_name",
	"content":       "content",
	"reflection":    "reflection",
}

// Filter is a compiled filter expression.
type Filter struct {
	expr    string
	ast     *cel.Ast
	program cel.Program
}

// Compile parses, type-checks and compiles the expression. The expression
// must evaluate to bool and only use the supported operators (==, !=, in,
// contains, &&, ||, !).
func Compile(expr string) (*Filter, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(ErrInvalidFilter, "%v", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.Wrapf(ErrInvalidFilter, "expression yields %s, want bool", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFilter, "%v", err)
	}
	f := &Filter{expr: expr, ast: ast, program: prg}

	// Reject unsupported shapes at compile time for both views, not at
	// query time.
	if _, _, err := translate(ast.NativeRep().Expr(), DialectPostgres); err != nil {
		return nil, err
	}
	return f, nil
}

// String returns the original expression.
func (f *Filter) String() string { return f.expr }

// Clause renders the filter for the given dialect. The SQL fragment uses
// `?` placeholders; drivers rebind as needed.
func (f *Filter) Clause(dialect Dialect) (store.FilterClause, error) {
	sql, args, err := translate(f.ast.NativeRep().Expr(), dialect)
	if err != nil {
		return store.FilterClause{}, err
	}
	return store.FilterClause{
		SQL:   sql,
		Args:  args,
		Match: f.Match,
	}, nil
}

// Match evaluates the filter against a memory in process.
func (f *Filter) Match(mem *store.Memory) bool {
	if mem == nil {
		return false
	}
	var kind, name string
	if mem.Location != nil {
		kind = string(mem.Location.Kind)
		name = mem.Location.Name
	}
	tags := mem.Tags
	if tags == nil {
		tags = []string{}
	}
	out, _, err := f.program.Eval(map[string]any{
		"tone":          mem.EmotionalTone,
		"tags":          tags,
		"location_kind": kind,
		"location":      name,
		"content":       mem.Content,
		"reflection":    mem.Reflection,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// translate walks the checked AST and emits a SQL condition.
func translate(e celast.Expr, dialect Dialect) (string, []any, error) {
	switch e.Kind() {
	case celast.CallKind:
		return translateCall(e.AsCall(), dialect)
	default:
		return "", nil, errors.Wrapf(ErrInvalidFilter, "unsupported expression kind %v", e.Kind())
	}
}

func translateCall(call celast.CallExpr, dialect Dialect) (string, []any, error) {
	switch call.FunctionName() {
	case operators.LogicalAnd, operators.LogicalOr:
		op := "AND"
		if call.FunctionName() == operators.LogicalOr {
			op = "OR"
		}
		args := call.Args()
		left, largs, err := translate(args[0], dialect)
		if err != nil {
			return "", nil, err
		}
		right, rargs, err := translate(args[1], dialect)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("(%s %s %s)", left, op, right), append(largs, rargs...), nil

	case operators.LogicalNot:
		inner, args, err := translate(call.Args()[0], dialect)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("NOT (%s)", inner), args, nil

	case operators.Equals, operators.NotEquals:
		col, val, err := identAndLiteral(call.Args())
		if err != nil {
			return "", nil, err
		}
		op := "="
		if call.FunctionName() == operators.NotEquals {
			op = "<>"
		}
		return fmt.Sprintf("%s %s ?", col, op), []any{val}, nil

	case operators.In:
		// `"x" in tags` is the only supported membership test.
		args := call.Args()
		if args[1].Kind() != celast.IdentKind || args[1].AsIdent() != "tags" {
			return "", nil, errors.Wrap(ErrInvalidFilter, "membership is only supported on tags")
		}
		if args[0].Kind() != celast.LiteralKind {
			return "", nil, errors.Wrap(ErrInvalidFilter, "tag membership requires a literal")
		}
		val, err := literalValue(args[0])
		if err != nil {
			return "", nil, err
		}
		switch dialect {
		case DialectPostgres:
			return "? = ANY(tags)", []any{val}, nil
		case DialectSQLite:
			return "EXISTS (SELECT 1 FROM json_each(memory.tags) WHERE json_each.value = ?)", []any{val}, nil
		default:
			return "", nil, errors.Wrapf(ErrInvalidFilter, "unknown dialect %q", dialect)
		}

	case "contains":
		// Member call: content.contains("x").
		if !call.IsMemberFunction() {
			return "", nil, errors.Wrap(ErrInvalidFilter, "contains must be called on a field")
		}
		target := call.Target()
		if target.Kind() != celast.IdentKind {
			return "", nil, errors.Wrap(ErrInvalidFilter, "contains target must be a field")
		}
		col, ok := identColumns[target.AsIdent()]
		if !ok {
			return "", nil, errors.Wrapf(ErrInvalidFilter, "unknown field %q", target.AsIdent())
		}
		val, err := literalValue(call.Args()[0])
		if err != nil {
			return "", nil, err
		}
		s, ok := val.(string)
		if !ok {
			return "", nil, errors.Wrap(ErrInvalidFilter, "contains requires a string literal")
		}
		pattern := "%" + escapeLike(s) + "%"
		if dialect == DialectSQLite {
			return fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, col), []any{pattern}, nil
		}
		return fmt.Sprintf("%s LIKE ?", col), []any{pattern}, nil

	default:
		return "", nil, errors.Wrapf(ErrInvalidFilter, "unsupported operator %q", call.FunctionName())
	}
}

// identAndLiteral matches `ident op literal` in either order.
func identAndLiteral(args []celast.Expr) (column string, value any, err error) {
	ident, lit := args[0], args[1]
	if ident.Kind() == celast.LiteralKind && lit.Kind() == celast.IdentKind {
		ident, lit = lit, ident
	}
	if ident.Kind() != celast.IdentKind || lit.Kind() != celast.LiteralKind {
		return "", nil, errors.Wrap(ErrInvalidFilter, "comparison requires a field and a literal")
	}
	col, ok := identColumns[ident.AsIdent()]
	if !ok {
		return "", nil, errors.Wrapf(ErrInvalidFilter, "field %q cannot be compared", ident.AsIdent())
	}
	val, err := literalValue(lit)
	if err != nil {
		return "", nil, err
	}
	return col, val, nil
}

func literalValue(e celast.Expr) (any, error) {
	if e.Kind() != celast.LiteralKind {
		return nil, errors.Wrap(ErrInvalidFilter, "expected a literal")
	}
	return e.AsLiteral().Value(), nil
}

// escapeLike escapes LIKE wildcards so user input cannot inject patterns.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
