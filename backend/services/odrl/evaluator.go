// Package odrl evaluates ODRL-style usage policies attached to contracts.
// Evaluation is a pure function over the policy document and a request
// context: no I/O, no shared state, deterministic for identical inputs.
package odrl

import (
	"strings"
	"time"

	"github.com/upb/dataspace-control-plane/backend/models"
)

// MatchedRuleType classifies which rule determined a decision
type MatchedRuleType string

const (
	MatchNone              MatchedRuleType = "NONE"
	MatchPermission        MatchedRuleType = "PERMISSION"
	MatchNoPermissionMatch MatchedRuleType = "NO_PERMISSION_MATCH"
	MatchProhibition       MatchedRuleType = "PROHIBITION"
)

// Context carries the facts a policy is evaluated against
type Context struct {
	Action   string
	Purpose  string
	Now      time.Time
	Assignee string
	Assigner string
	Target   string
}

// Decision is the outcome of evaluating a policy against a context
type Decision struct {
	Allow           bool            `json:"allow"`
	Reason          string          `json:"reason"`
	MatchedRuleType MatchedRuleType `json:"matched_rule_type"`
}

// Evaluate applies the policy to the context. A nil policy allows by default
// (contracts without an attached policy are unrestricted). Permissions are
// scanned in document order and the first match wins; a matching prohibition
// always overrides a matching permission.
func Evaluate(policy *models.ODRLPolicy, ctx Context) Decision {
	if policy == nil {
		return Decision{
			Allow:           true,
			Reason:          "no policy attached; access allowed by default",
			MatchedRuleType: MatchNone,
		}
	}

	action := models.NormalizeAction(ctx.Action)

	permitted := false
	for _, rule := range policy.Permission {
		if ruleMatches(rule, action, ctx) {
			permitted = true
			break
		}
	}

	if !permitted {
		return Decision{
			Allow:           false,
			Reason:          "policy grants no permission for the requested action and constraints",
			MatchedRuleType: MatchNoPermissionMatch,
		}
	}

	for _, rule := range policy.Prohibition {
		if ruleMatches(rule, action, ctx) {
			return Decision{
				Allow:           false,
				Reason:          "the requested action is prohibited by policy",
				MatchedRuleType: MatchProhibition,
			}
		}
	}

	return Decision{
		Allow:           true,
		Reason:          "access permitted by policy",
		MatchedRuleType: MatchPermission,
	}
}

// ruleMatches reports whether a rule applies to the action and all of its
// constraints pass. An empty action set applies to every action.
func ruleMatches(rule models.ODRLRule, action string, ctx Context) bool {
	if len(rule.Action) > 0 && !rule.Action.Contains(action) {
		return false
	}
	for _, constraint := range rule.Constraint {
		if !constraintPasses(constraint, ctx) {
			return false
		}
	}
	return true
}

// constraintPasses evaluates a single constraint. Unrecognized leftOperands
// pass vacuously so newer vocabulary never locks out existing contracts.
func constraintPasses(c models.ODRLConstraint, ctx Context) bool {
	switch strings.ToLower(strings.TrimSpace(c.LeftOperand)) {
	case "purpose":
		return stringConstraintPasses(c, ctx.Purpose)
	case "assignee":
		return stringConstraintPasses(c, ctx.Assignee)
	case "assigner":
		return stringConstraintPasses(c, ctx.Assigner)
	case "target":
		return stringConstraintPasses(c, ctx.Target)
	case "datetime":
		return timeConstraintPasses(c, ctx.Now)
	default:
		return true
	}
}

// stringConstraintPasses compares the context value against the rightOperand
// case-insensitively. An empty rightOperand passes, and so does an operator
// outside eq/neq/isAnyOf.
func stringConstraintPasses(c models.ODRLConstraint, value string) bool {
	if len(c.RightOperand) == 0 {
		return true
	}

	normalized := strings.ToLower(strings.TrimSpace(value))

	switch strings.ToLower(strings.TrimSpace(c.Operator)) {
	case "eq", "":
		return normalized == strings.ToLower(strings.TrimSpace(c.RightOperand.First()))
	case "neq":
		return normalized != strings.ToLower(strings.TrimSpace(c.RightOperand.First()))
	case "isanyof":
		for _, candidate := range c.RightOperand {
			if normalized == strings.ToLower(strings.TrimSpace(candidate)) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// timeConstraintPasses evaluates the temporal operator family against now.
// Unparsable timestamps and unrecognized operators pass vacuously.
func timeConstraintPasses(c models.ODRLConstraint, now time.Time) bool {
	bound, ok := parseTimestamp(c.RightOperand.First())
	if !ok {
		return true
	}

	switch strings.ToLower(strings.TrimSpace(c.Operator)) {
	case "gteq", "gt", "after":
		return !now.Before(bound)
	case "lteq", "lt", "before":
		return !now.After(bound)
	default:
		return true
	}
}

// timestampLayouts are tried in order when parsing dateTime operands
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
