// Package filter implements the expression algebra used to describe record
// predicates once and render them into SQL, AQL, Cypher, GSQL or an
// in-process evaluator.
package filter

import "fmt"

// ComparisonOperator is a leaf comparison.
type ComparisonOperator string

const (
	NEQ       ComparisonOperator = "!="
	EQ        ComparisonOperator = "=="
	GE        ComparisonOperator = ">="
	LE        ComparisonOperator = "<="
	GT        ComparisonOperator = ">"
	LT        ComparisonOperator = "<"
	IN        ComparisonOperator = "in"
	IsNull    ComparisonOperator = "is_null"
	IsNotNull ComparisonOperator = "is_not_null"
)

// LogicalOperator combines sub-expressions.
type LogicalOperator string

const (
	AND         LogicalOperator = "and"
	OR          LogicalOperator = "or"
	NOT         LogicalOperator = "not"
	Implication LogicalOperator = "if_then"
)

// Flavor selects the target rendering dialect.
type Flavor int

const (
	SQL Flavor = iota
	AQL
	Cypher
	GSQL
	InProcess
)

// Expression is the sealed interface implemented by Leaf and Composite.
type Expression interface {
	isExpression()
	// Render produces the textual form for the given flavor. docName is the
	// document/alias prefix used by AQL/Cypher/GSQL (empty selects GSQL's
	// REST++ key=value mode).
	Render(flavor Flavor, docName string, fieldTypes map[string]string) (string, error)
}

// Leaf is a single field comparison.
type Leaf struct {
	Field   string
	CmpOp   ComparisonOperator
	UnaryOp string // optional named method, used only by InProcess rendering
	Value   []interface{}
}

func (*Leaf) isExpression() {}

// NewLeaf builds a Leaf, applying the bare-nil normalization rule: a bare
// nil value becomes []interface{}{nil}, never an empty slice, unless the
// operator is IS_NULL/IS_NOT_NULL (unary, no operand).
func NewLeaf(field string, op ComparisonOperator, value interface{}) *Leaf {
	l := &Leaf{Field: field, CmpOp: op}
	switch op {
	case IsNull, IsNotNull:
		l.Value = []interface{}{}
	default:
		if values, ok := value.([]interface{}); ok {
			l.Value = values
		} else {
			l.Value = []interface{}{value}
		}
	}
	return l
}

// Composite joins one or more sub-expressions with a logical operator.
type Composite struct {
	Operator LogicalOperator
	Deps     []Expression
}

func (*Composite) isExpression() {}

// castValue renders a scalar as a double-quoted string literal, used by the
// AQL, Cypher and in-process flavors.
func castValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		escaped := ""
		for _, r := range val {
			switch r {
			case '\\':
				escaped += `\\`
			case '"':
				escaped += `\"`
			default:
				escaped += string(r)
			}
		}
		return `"` + escaped + `"`
	default:
		return fmt.Sprintf("%v", val)
	}
}

// castSQLValue renders a scalar as a single-quoted SQL literal, per §4.1:
// "String literals are single-quoted with backslash/quote escaping."
func castSQLValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		escaped := ""
		for _, r := range val {
			switch r {
			case '\\':
				escaped += `\\`
			case '\'':
				escaped += `\'`
			default:
				escaped += string(r)
			}
		}
		return "'" + escaped + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderValueList joins a leaf's Value list with the given quote function,
// comma-separated, for IN rendering.
func renderValueList(values []interface{}, quote func(interface{}) string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = quote(v)
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func qualify(docName, field string) string {
	if docName == "" {
		return field
	}
	return docName + "." + field
}

// splitQualifiedField separates a pre-qualified "alias.column" field (as
// produced by the auto-join planner) from a bare column name.
func splitQualifiedField(field string) (alias, column string) {
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			return field[:i], field[i+1:]
		}
	}
	return "", field
}

// Render dispatches to the flavor-specific caster.
func (l *Leaf) Render(flavor Flavor, docName string, fieldTypes map[string]string) (string, error) {
	switch flavor {
	case AQL:
		return l.castArango(docName)
	case Cypher:
		return l.castCypher(docName)
	case GSQL:
		return l.castGSQL(docName, fieldTypes)
	case SQL:
		return l.castSQL(docName)
	case InProcess:
		return l.castInProcess()
	default:
		return "", fmt.Errorf("filter: unsupported flavor %v", flavor)
	}
}

func (l *Leaf) operandOrNil() interface{} {
	if len(l.Value) == 0 {
		return nil
	}
	return l.Value[0]
}

func (l *Leaf) castArango(docName string) (string, error) {
	qf := docName + `["` + l.Field + `"]`
	switch l.CmpOp {
	case IsNull:
		return qf + " == null", nil
	case IsNotNull:
		return qf + " != null", nil
	case IN:
		return fmt.Sprintf("%s IN [%s]", qf, renderValueList(l.Value, castValue)), nil
	default:
		return fmt.Sprintf("%s %s %s", qf, l.CmpOp, castValue(l.operandOrNil())), nil
	}
}

func (l *Leaf) castCypher(docName string) (string, error) {
	qf := qualify(docName, l.Field)
	op := string(l.CmpOp)
	switch l.CmpOp {
	case EQ:
		op = "="
	case IsNull:
		return qf + " IS NULL", nil
	case IsNotNull:
		return qf + " IS NOT NULL", nil
	case IN:
		return fmt.Sprintf("%s IN [%s]", qf, renderValueList(l.Value, castValue)), nil
	}
	return fmt.Sprintf("%s %s %s", qf, op, castValue(l.operandOrNil())), nil
}

// gsqlOpTokens maps the portable ComparisonOperator set to the REST++
// key=value operator tokens of §4.1.
var gsqlOpTokens = map[ComparisonOperator]string{
	EQ:  "=",
	NEQ: "!=",
	LT:  "<",
	GT:  ">",
	LE:  "<=",
	GE:  ">=",
}

func (l *Leaf) castGSQL(docName string, fieldTypes map[string]string) (string, error) {
	if docName != "" {
		qf := qualify(docName, l.Field)
		op := string(l.CmpOp)
		if l.CmpOp == EQ {
			op = "=="
		}
		switch l.CmpOp {
		case IsNull:
			return qf + " IS NULL", nil
		case IsNotNull:
			return qf + " IS NOT NULL", nil
		case IN:
			return fmt.Sprintf("%s IN [%s]", qf, renderValueList(l.Value, castValue)), nil
		}
		return fmt.Sprintf("%s %s %s", qf, op, castValue(l.operandOrNil())), nil
	}
	// REST++ key=value mode: no doc alias.
	switch l.CmpOp {
	case IsNull:
		return l.Field + `=""`, nil
	case IsNotNull:
		return l.Field + `!=""`, nil
	}
	quote := true
	if fieldTypes != nil {
		if t, ok := fieldTypes[l.Field]; ok {
			switch t {
			case "int", "int64", "float", "float64", "double", "bool", "uint64":
				quote = false
			}
		}
	}
	val := l.operandOrNil()
	var rendered string
	if s, ok := val.(string); ok && quote {
		rendered = `"` + s + `"`
	} else {
		rendered = fmt.Sprintf("%v", val)
	}
	op, ok := gsqlOpTokens[l.CmpOp]
	if !ok {
		return "", fmt.Errorf("filter: GSQL REST++ mode does not support operator %q", l.CmpOp)
	}
	return fmt.Sprintf("%s%s%s", l.Field, op, rendered), nil
}

func (l *Leaf) castSQL(docName string) (string, error) {
	alias, column := splitQualifiedField(l.Field)
	if alias != "" {
		docName = alias
	}
	qf := qualify(docName, `"`+column+`"`)
	switch l.CmpOp {
	case IsNull:
		return qf + " IS NULL", nil
	case IsNotNull:
		return qf + " IS NOT NULL", nil
	case IN:
		return fmt.Sprintf("%s IN (%s)", qf, renderValueList(l.Value, castSQLValue)), nil
	}
	op := string(l.CmpOp)
	if l.CmpOp == EQ {
		op = "="
	} else if l.CmpOp == NEQ {
		op = "<>"
	}
	return fmt.Sprintf("%s %s %s", qf, op, castSQLValue(l.operandOrNil())), nil
}

// castInProcess renders a govaluate-compatible expression string. Leaves
// with a UnaryOp compile to a registered function call over the field and
// operand; see filter.Functions for the built-in table. IN renders as an
// OR-chain of equality checks since govaluate has no array-literal syntax.
func (l *Leaf) castInProcess() (string, error) {
	if l.UnaryOp != "" {
		val := l.operandOrNil()
		return fmt.Sprintf("%s([%s], %s)", l.UnaryOp, l.Field, castValue(val)), nil
	}
	switch l.CmpOp {
	case IsNull:
		return fmt.Sprintf("[%s] == nil", l.Field), nil
	case IsNotNull:
		return fmt.Sprintf("[%s] != nil", l.Field), nil
	case IN:
		if len(l.Value) == 0 {
			return "false", nil
		}
		clause := fmt.Sprintf("[%s] == %s", l.Field, castValue(l.Value[0]))
		for _, v := range l.Value[1:] {
			clause = fmt.Sprintf("(%s) || ([%s] == %s)", clause, l.Field, castValue(v))
		}
		return clause, nil
	}
	op := string(l.CmpOp)
	if l.CmpOp == EQ {
		op = "=="
	}
	return fmt.Sprintf("[%s] %s %s", l.Field, op, castValue(l.operandOrNil())), nil
}

// Render dispatches composite rendering; NOT requires exactly one dep.
func (c *Composite) Render(flavor Flavor, docName string, fieldTypes map[string]string) (string, error) {
	if c.Operator == NOT && len(c.Deps) != 1 {
		return "", fmt.Errorf("filter: NOT requires exactly one dependency, got %d", len(c.Deps))
	}
	rendered := make([]string, len(c.Deps))
	for i, dep := range c.Deps {
		r, err := dep.Render(flavor, docName, fieldTypes)
		if err != nil {
			return "", err
		}
		rendered[i] = r
	}

	// InProcess and GSQL's REST++ key=value mode use C-style logical
	// tokens; every query-language flavor uses keywords.
	notFmt, andSep, orSep := "NOT (%s)", " AND ", " OR "
	if flavor == InProcess || (flavor == GSQL && docName == "") {
		notFmt, andSep, orSep = "!(%s)", " && ", " || "
	}

	switch c.Operator {
	case Implication:
		if len(c.Deps) != 2 {
			return "", fmt.Errorf("filter: IF_THEN requires exactly two dependencies, got %d", len(c.Deps))
		}
		// b if a else true == (not a) or b
		return fmt.Sprintf("(%s%s(%s))", fmt.Sprintf(notFmt, rendered[0]), orSep, rendered[1]), nil
	case NOT:
		return fmt.Sprintf(notFmt, rendered[0]), nil
	}

	sep := andSep
	if c.Operator == OR {
		sep = orSep
	}
	result := rendered[0]
	for _, r := range rendered[1:] {
		result = fmt.Sprintf("(%s)%s(%s)", result, sep, r)
	}
	return result, nil
}
