// Package validator evaluates attribute rules.
//
// A Validator maps rule kinds to checks. Each check receives the merged
// options (per-kind defaults overridden by the rule's own options) and the
// value, and reports whether the value passes. Unknown kinds never pass.
//
//	v := validator.New()
//	v.IsValid(types.RuleString, map[string]any{"max": 64}, "Ann") // true
//	v.IsValid("unknown", nil, "x")                                // false
//
// Custom kinds are added with Register before the validator is shared.
package validator
