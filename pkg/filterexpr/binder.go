package filterexpr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Msg wraps request DTOs that expose filter and order_by raw inputs.
type Msg interface {
	GetFilter() string
	GetOrderBy() string
}

// ValueKind describes the kind of literal value a field accepts.
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindTimestamp ValueKind = "timestamp"
)

// Op represents a supported comparison operation.
type Op string

const (
	OpEQ  Op = "=="
	OpGTE Op = ">="
	OpLTE Op = "<="
	OpIN  Op = "in"
)

// FilterField maps the operations allowed on a filter field to params struct fields.
type FilterField struct {
	Kind ValueKind
	Ops  map[Op]string
}

// OrderField maps an order key to a column expression.
type OrderField struct {
	Expr string
}

// OrderSchema describes ordering defaults and whitelisted keys.
type OrderSchema struct {
	DefaultPrimary     string
	DefaultPrimaryDesc bool
	FallbackKey        string
	FallbackDesc       bool
	Fields             map[string]OrderField
}

// ResourceSchema aggregates filtering and ordering rules for a resource.
type ResourceSchema struct {
	Filter map[string]FilterField
	Order  OrderSchema
}

var timeType = reflect.TypeOf(time.Time{})

// Bind parses the request filter & order_by and populates the query params struct accordingly.
// Only conjunctions of atomic predicates are accepted.
func Bind[M Msg, P any](msg M, binding *P, schema ResourceSchema) error {
	if binding == nil {
		return errors.New("binding must not be nil")
	}
	dest := reflect.ValueOf(binding).Elem()
	if dest.Kind() != reflect.Struct {
		return errors.New("binding must point to a struct")
	}

	if err := bindFilter(dest, msg.GetFilter(), schema.Filter); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	order, err := parseOrderBy(msg.GetOrderBy(), schema.Order)
	if err != nil {
		return fmt.Errorf("order_by: %w", err)
	}
	return setOrderParams(dest, order)
}

type predicate struct {
	Field string
	Op    Op
	Value any
}

func bindFilter(dest reflect.Value, filter string, fields map[string]FilterField) error {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil
	}
	if len(fields) == 0 {
		return errors.New("filter schema has no fields defined")
	}

	env, err := buildEnv(fields)
	if err != nil {
		return err
	}
	ast, issues := env.Parse(filter)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("invalid filter: %w", issues.Err())
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return fmt.Errorf("failed to convert AST: %w", err)
	}

	conjuncts, err := flattenAnd(parsed.GetExpr())
	if err != nil {
		return err
	}
	for _, expr := range conjuncts {
		pred, err := parsePredicate(expr)
		if err != nil {
			return err
		}
		rule, ok := fields[pred.Field]
		if !ok {
			return fmt.Errorf("field %q is not allowed", pred.Field)
		}
		target, ok := rule.Ops[pred.Op]
		if !ok {
			return fmt.Errorf("operator %q is not allowed for field %q", string(pred.Op), pred.Field)
		}
		if err := checkLiteral(rule.Kind, pred); err != nil {
			return fmt.Errorf("field %q: %w", pred.Field, err)
		}
		field := dest.FieldByName(target)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("params struct %s has no settable field %q", dest.Type(), target)
		}
		if err := assign(field, pred.Value); err != nil {
			return fmt.Errorf("failed to assign field %q: %w", target, err)
		}
	}
	return nil
}

func buildEnv(fields map[string]FilterField) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(fields))
	for name, rule := range fields {
		switch rule.Kind {
		case KindString:
			opts = append(opts, cel.Variable(name, cel.StringType))
		case KindTimestamp:
			opts = append(opts, cel.Variable(name, cel.TimestampType))
		default:
			return nil, fmt.Errorf("field %q: unsupported kind %s", name, rule.Kind)
		}
	}
	return cel.NewEnv(opts...)
}

// flattenAnd splits nested binary AND calls into their operands.
func flattenAnd(expr *exprpb.Expr) ([]*exprpb.Expr, error) {
	if expr == nil {
		return nil, errors.New("empty expression")
	}
	call := expr.GetCallExpr()
	if call == nil {
		return []*exprpb.Expr{expr}, nil
	}
	switch call.Function {
	case "_&&_":
		var out []*exprpb.Expr
		for _, arg := range call.Args {
			parts, err := flattenAnd(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, parts...)
		}
		return out, nil
	case "_||_", "_?_:_", "!_":
		return nil, fmt.Errorf("logical operator %q is not supported; only AND is allowed", call.Function)
	default:
		return []*exprpb.Expr{expr}, nil
	}
}

func parsePredicate(expr *exprpb.Expr) (predicate, error) {
	call := expr.GetCallExpr()
	if call == nil || call.Target != nil || len(call.Args) != 2 {
		return predicate{}, errors.New("unsupported expression; expected a comparison")
	}

	var op Op
	switch call.Function {
	case "_==_":
		op = OpEQ
	case "_>=_":
		op = OpGTE
	case "_<=_":
		op = OpLTE
	case "@in", "_in_":
		op = OpIN
	default:
		return predicate{}, fmt.Errorf("function %q is not supported", call.Function)
	}

	ident := call.Args[0].GetIdentExpr()
	if ident == nil {
		return predicate{}, errors.New("left-hand side must be an identifier")
	}
	value, err := parseLiteral(call.Args[1])
	if err != nil {
		return predicate{}, err
	}
	return predicate{Field: ident.GetName(), Op: op, Value: value}, nil
}

func parseLiteral(expr *exprpb.Expr) (any, error) {
	if constant := expr.GetConstExpr(); constant != nil {
		if s, ok := constant.ConstantKind.(*exprpb.Constant_StringValue); ok {
			return s.StringValue, nil
		}
		return nil, fmt.Errorf("literal type %T is not supported", constant.ConstantKind)
	}

	if list := expr.GetListExpr(); list != nil {
		values := make([]string, 0, len(list.GetElements()))
		for i, elem := range list.GetElements() {
			v, err := parseLiteral(elem)
			if err != nil {
				return nil, fmt.Errorf("list literal element %d: %w", i, err)
			}
			s, ok := v.(string)
			if !ok {
				return nil, errors.New("list literal elements must be strings")
			}
			values = append(values, s)
		}
		return values, nil
	}

	if call := expr.GetCallExpr(); call != nil && call.Function == "timestamp" {
		if call.Target != nil || len(call.Args) != 1 || call.Args[0].GetConstExpr() == nil {
			return nil, errors.New("timestamp() expects a single string literal")
		}
		raw := call.Args[0].GetConstExpr().GetStringValue()
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("timestamp literal %q is not RFC3339", raw)
		}
		return t, nil
	}

	return nil, errors.New("right-hand side must be a literal, list literal, or timestamp() call")
}

func checkLiteral(kind ValueKind, pred predicate) error {
	switch v := pred.Value.(type) {
	case string:
		if kind != KindString || pred.Op == OpIN {
			return fmt.Errorf("unexpected %s literal", KindString)
		}
	case []string:
		if kind != KindString || pred.Op != OpIN {
			return errors.New("list literal only allowed with in")
		}
		if len(v) == 0 {
			return errors.New("list literal must not be empty")
		}
	case time.Time:
		if kind != KindTimestamp {
			return fmt.Errorf("unexpected %s literal", KindTimestamp)
		}
	}
	return nil
}

func assign(field reflect.Value, value any) error {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return assign(field.Elem(), value)
	}

	switch v := value.(type) {
	case string:
		if field.Kind() != reflect.String {
			return fmt.Errorf("expected string-compatible destination, got %s", field.Kind())
		}
		field.SetString(v)
	case []string:
		if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("expected slice of strings destination, got %s", field.Type())
		}
		out := reflect.MakeSlice(field.Type(), len(v), len(v))
		for i, s := range v {
			out.Index(i).SetString(s)
		}
		field.Set(out)
	case time.Time:
		if field.Type() != timeType {
			return fmt.Errorf("expected time.Time destination, got %s", field.Type())
		}
		field.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("unsupported literal type %T", value)
	}
	return nil
}
