package models

import (
	"encoding/json"
	"strings"
)

// ODRLPolicy is the declarative usage policy optionally attached to a
// contract. Permissions grant an action under constraints; prohibitions
// forbid it. A matching prohibition always overrides a matching permission.
type ODRLPolicy struct {
	Permission  []ODRLRule `json:"permission,omitempty"`
	Prohibition []ODRLRule `json:"prohibition,omitempty"`
}

// ODRLRule is a single permission or prohibition entry
type ODRLRule struct {
	Action     ActionSet        `json:"action,omitempty"`
	Constraint []ODRLConstraint `json:"constraint,omitempty"`
}

// ODRLConstraint is one leftOperand/operator/rightOperand condition
type ODRLConstraint struct {
	LeftOperand  string     `json:"leftOperand"`
	Operator     string     `json:"operator"`
	RightOperand ValueList  `json:"rightOperand"`
}

// NormalizeAction canonicalizes an action identifier to the lowercase form
// used for all action comparisons.
func NormalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}

// ActionSet is the set of canonical action identifiers carried by a rule.
// Policy documents in the wild express actions as a bare string, an object
// with one of several synonymous identifier fields (value, id, name), or a
// list mixing both. All variants decode into the same normalized form; an
// empty set means the rule applies to every action.
type ActionSet []string

// Contains reports whether the set contains the (already normalized) action
func (a ActionSet) Contains(action string) bool {
	for _, v := range a {
		if v == action {
			return true
		}
	}
	return false
}

// UnmarshalJSON decodes every accepted action representation
func (a *ActionSet) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	items, ok := raw.([]interface{})
	if !ok {
		items = []interface{}{raw}
	}

	out := make(ActionSet, 0, len(items))
	for _, item := range items {
		if id := extractActionID(item); id != "" {
			out = append(out, id)
		}
	}
	*a = out
	return nil
}

// MarshalJSON emits the canonical list form
func (a ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(a))
}

func extractActionID(item interface{}) string {
	switch v := item.(type) {
	case string:
		return NormalizeAction(v)
	case map[string]interface{}:
		for _, key := range []string{"value", "id", "name"} {
			if s, ok := v[key].(string); ok && s != "" {
				return NormalizeAction(s)
			}
		}
	}
	return ""
}

// ValueList holds a rightOperand, which may be a scalar or a list. Scalars
// decode into a single-element list; non-string scalars keep their JSON
// representation so timestamps and numbers survive round-tripping.
type ValueList []string

// First returns the first value, or the empty string for an empty operand
func (v ValueList) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// UnmarshalJSON decodes a scalar or a list of scalars
func (v *ValueList) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	items, ok := raw.([]interface{})
	if !ok {
		items = []interface{}{raw}
	}

	out := make(ValueList, 0, len(items))
	for _, item := range items {
		switch s := item.(type) {
		case string:
			out = append(out, s)
		case nil:
			// skip explicit nulls
		default:
			if b, err := json.Marshal(item); err == nil {
				out = append(out, string(b))
			}
		}
	}
	*v = out
	return nil
}

// MarshalJSON emits a scalar for single values and a list otherwise
func (v ValueList) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]string(v))
}
