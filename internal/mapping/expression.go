package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Expression source prefixes.
const (
	PrefixTrigger = "trigger"
	PrefixContext = "context"
)

// Expression kinds reported by Parse.
const (
	ExprLiteral = "literal"
	ExprNumber  = "number"
	ExprTrigger = "trigger"
	ExprContext = "context"
)

// Expr is a parsed value expression.
type Expr struct {
	Kind  string
	Path  string
	Value any
}

// Parse checks the syntax of a value expression without evaluating it.
// Supported expressions:
//   - trigger.field_id         value from the triggering record
//   - trigger.address.city     nested value
//   - context.user_id          acting user
//   - context.now              evaluation time (RFC 3339)
//   - context.today            evaluation date (YYYY-MM-DD)
//   - 'literal'                single-quoted literal string
//   - 123 / 99.99              numeric literal
func Parse(expr string) (Expr, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Expr{}, fmt.Errorf("empty expression")
	}

	if len(expr) >= 2 && expr[0] == '\'' && expr[len(expr)-1] == '\'' {
		return Expr{Kind: ExprLiteral, Value: expr[1 : len(expr)-1]}, nil
	}

	if isNumericLiteral(expr) {
		v, err := parseNumeric(expr)
		if err != nil {
			return Expr{}, err
		}
		return Expr{Kind: ExprNumber, Value: v}, nil
	}

	dotIdx := strings.IndexByte(expr, '.')
	if dotIdx < 0 {
		return Expr{}, fmt.Errorf("invalid expression %q: missing source prefix", expr)
	}
	prefix := expr[:dotIdx]
	path := expr[dotIdx+1:]
	if path == "" {
		return Expr{}, fmt.Errorf("invalid expression %q: empty path after prefix", expr)
	}

	switch prefix {
	case PrefixTrigger:
		return Expr{Kind: ExprTrigger, Path: path}, nil
	case PrefixContext:
		switch path {
		case "user_id", "now", "today":
			return Expr{Kind: ExprContext, Path: path}, nil
		default:
			return Expr{}, fmt.Errorf("unknown context field %q", path)
		}
	default:
		return Expr{}, fmt.Errorf("unknown expression prefix %q in %q", prefix, expr)
	}
}

// ExpressionResolver evaluates value expressions against the triggering
// record and the request context.
type ExpressionResolver struct {
	Trigger map[string]any
	Context *model.RequestContext
	Now     time.Time
}

// Resolve evaluates expr. See Parse for the grammar.
func (r *ExpressionResolver) Resolve(expr string) (any, error) {
	e, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	switch e.Kind {
	case ExprLiteral, ExprNumber:
		return e.Value, nil
	case ExprTrigger:
		return r.resolveTrigger(e.Path)
	default:
		return r.resolveContext(e.Path)
	}
}

func (r *ExpressionResolver) resolveTrigger(path string) (any, error) {
	if r.Trigger == nil {
		return nil, fmt.Errorf("trigger record is nil, cannot resolve %q", PrefixTrigger+"."+path)
	}
	val := navigatePath(r.Trigger, path)
	if val == nil {
		return nil, fmt.Errorf("trigger field %q not found", path)
	}
	return val, nil
}

func (r *ExpressionResolver) resolveContext(field string) (any, error) {
	switch field {
	case "user_id":
		if r.Context == nil || r.Context.ActorID == "" {
			return nil, fmt.Errorf("no acting user, cannot resolve %q", PrefixContext+"."+field)
		}
		return r.Context.ActorID, nil
	case "now":
		return r.now().Format(time.RFC3339), nil
	case "today":
		return r.now().Format(time.DateOnly), nil
	default:
		return nil, fmt.Errorf("unknown context field %q", field)
	}
}

func (r *ExpressionResolver) now() time.Time {
	now := r.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.In(r.Context.Location())
}

// navigatePath navigates a dot-separated path through nested maps.
func navigatePath(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// isNumericLiteral returns true if the string looks like a number.
func isNumericLiteral(s string) bool {
	if len(s) == 0 {
		return false
	}
	start := 0
	if s[0] == '-' || s[0] == '+' {
		start = 1
		if start >= len(s) {
			return false
		}
	}
	hasDot := false
	for i := start; i < len(s); i++ {
		if s[i] == '.' {
			if hasDot {
				return false
			}
			hasDot = true
		} else if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseNumeric parses a numeric string literal.
func parseNumeric(s string) (any, error) {
	if strings.ContainsRune(s, '.') {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric literal %q: %w", s, err)
		}
		return v, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric literal %q: %w", s, err)
	}
	return v, nil
}
