package filter

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts both the list form ([cmp_operator, value, field?,
// unary_op?]) and the dict form ({field, cmp_operator, value, operator?}) of
// a single leaf, mirroring the Python DSL this algebra was distilled from.
// Composite shapes are not recognized here; ParseExpression and ParseDict
// handle those.
func (l *Leaf) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var raw []interface{}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		return l.fromList(raw)
	case yaml.MappingNode:
		var raw map[string]interface{}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		return l.fromDict(raw)
	default:
		return fmt.Errorf("filter: leaf expression must be a list or mapping")
	}
}

func (l *Leaf) fromList(raw []interface{}) error {
	if len(raw) < 2 {
		return fmt.Errorf("filter: leaf list form requires at least [cmp_operator, value]")
	}
	op, ok := raw[0].(string)
	if !ok {
		return fmt.Errorf("filter: leaf list form's first element must be a comparison operator string")
	}
	l.CmpOp = ComparisonOperator(op)
	*l = *NewLeaf(l.Field, l.CmpOp, raw[1])
	if len(raw) >= 3 {
		if field, ok := raw[2].(string); ok {
			l.Field = field
		}
	}
	if len(raw) >= 4 {
		if unary, ok := raw[3].(string); ok {
			l.UnaryOp = unary
		}
	}
	return nil
}

func (l *Leaf) fromDict(raw map[string]interface{}) error {
	if field, ok := raw["field"].(string); ok {
		l.Field = field
	}
	if op, ok := raw["cmp_operator"].(string); ok {
		l.CmpOp = ComparisonOperator(op)
	}
	// A present "value" key normalizes through NewLeaf, so an explicit null
	// stays [nil]; an absent key defaults to the empty list — the two are
	// deliberately distinct.
	if v, hasValue := raw["value"]; hasValue {
		*l = *NewLeaf(l.Field, l.CmpOp, v)
	} else {
		l.Value = []interface{}{}
	}
	// YAML `operator` key renames to UnaryOp for leaf expressions only.
	if unary, ok := raw["operator"].(string); ok {
		l.UnaryOp = unary
	}
	return nil
}

// MarshalYAML renders a Leaf in dict form: {field, cmp_operator, value,
// operator?} — the inverse of fromDict.
func (l *Leaf) MarshalYAML() (interface{}, error) {
	out := map[string]interface{}{
		"field":        l.Field,
		"cmp_operator": string(l.CmpOp),
	}
	if len(l.Value) > 0 {
		if len(l.Value) == 1 {
			out["value"] = l.Value[0]
		} else {
			out["value"] = l.Value
		}
	}
	if l.UnaryOp != "" {
		out["operator"] = l.UnaryOp
	}
	return out, nil
}

// MarshalYAML renders a Composite as a single-key dict whose key is the
// logical operator name and whose value is the list of rendered deps.
func (c *Composite) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{string(c.Operator): c.Deps}, nil
}

// ParseExpression dispatches on the raw shape: a two-element list
// whose first entry is a known LogicalOperator is a list-form composite
// ([logical_operator, [subexpr, ...]]); any other list is a list-form leaf
// ([cmp_operator, value, field?, unary_op?]); a mapping goes to ParseDict.
func ParseExpression(raw interface{}) (Expression, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return ParseDict(v)
	case []interface{}:
		return parseList(v)
	default:
		return nil, fmt.Errorf("filter: expression must be a list or mapping, got %T", raw)
	}
}

// parseList handles the list-form composite ([logical_operator,
// [subexpr, ...]]) and falls back to the list-form leaf otherwise.
func parseList(raw []interface{}) (Expression, error) {
	if len(raw) == 2 {
		if opName, ok := raw[0].(string); ok {
			for _, logicalOp := range []LogicalOperator{AND, OR, NOT, Implication} {
				if opName != string(logicalOp) {
					continue
				}
				children, ok := raw[1].([]interface{})
				if !ok {
					return nil, fmt.Errorf("filter: composite %q value must be a list", logicalOp)
				}
				deps := make([]Expression, 0, len(children))
				for _, childRaw := range children {
					child, err := ParseExpression(childRaw)
					if err != nil {
						return nil, err
					}
					deps = append(deps, child)
				}
				if err := validateFanIn(logicalOp, len(deps)); err != nil {
					return nil, err
				}
				return &Composite{Operator: logicalOp, Deps: deps}, nil
			}
		}
	}
	leaf := &Leaf{}
	if err := leaf.fromList(raw); err != nil {
		return nil, err
	}
	return leaf, nil
}

func validateFanIn(op LogicalOperator, n int) error {
	switch op {
	case NOT:
		if n != 1 {
			return fmt.Errorf("filter: NOT composite requires exactly 1 dep, got %d", n)
		}
	case Implication:
		if n != 2 {
			return fmt.Errorf("filter: IF_THEN composite requires exactly 2 deps, got %d", n)
		}
	case AND, OR:
		if n == 0 {
			return fmt.Errorf("filter: %s composite requires at least 1 dep", op)
		}
	}
	return nil
}

// ParseDict builds an Expression tree from a generic map, handling both
// leaf and composite dict shapes. A composite dict has exactly one key
// naming a LogicalOperator, whose value is a list of child expressions.
func ParseDict(raw map[string]interface{}) (Expression, error) {
	for _, logicalOp := range []LogicalOperator{AND, OR, NOT, Implication} {
		if children, ok := raw[string(logicalOp)]; ok {
			list, ok := children.([]interface{})
			if !ok {
				return nil, fmt.Errorf("filter: composite %q value must be a list", logicalOp)
			}
			deps := make([]Expression, 0, len(list))
			for _, childRaw := range list {
				childMap, ok := childRaw.(map[string]interface{})
				if !ok {
					return nil, fmt.Errorf("filter: composite child must be a mapping")
				}
				child, err := ParseDict(childMap)
				if err != nil {
					return nil, err
				}
				deps = append(deps, child)
			}
			if err := validateFanIn(logicalOp, len(deps)); err != nil {
				return nil, err
			}
			return &Composite{Operator: logicalOp, Deps: deps}, nil
		}
	}
	leaf := &Leaf{}
	if err := leaf.fromDict(raw); err != nil {
		return nil, err
	}
	return leaf, nil
}
