package validator

import (
	"maps"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Check reports whether value satisfies a rule given its merged options.
type Check func(options map[string]any, value any) bool

type kind struct {
	defaults map[string]any
	check    Check
}

// Validator is a stateless rule evaluator. Register all kinds before sharing
// a Validator between goroutines; IsValid itself does not mutate state.
type Validator struct {
	kinds map[types.RuleKind]kind
}

// New returns a Validator with the built-in kinds: required, string,
// integer and email.
func New() *Validator {
	v := &Validator{kinds: make(map[types.RuleKind]kind)}
	v.Register(types.RuleRequired, nil, checkRequired)
	v.Register(types.RuleString, map[string]any{"min": 0}, checkStringLength)
	v.Register(types.RuleInteger, map[string]any{"inclusive": true}, checkBetween)
	v.Register(types.RuleEmail, nil, checkEmail)
	return v
}

// Register adds or replaces the check for a rule kind.
func (v *Validator) Register(k types.RuleKind, defaults map[string]any, check Check) {
	v.kinds[k] = kind{defaults: defaults, check: check}
}

// Has reports whether a check is registered for k.
func (v *Validator) Has(k types.RuleKind) bool {
	_, ok := v.kinds[k]
	return ok
}

// IsValid runs the check registered for k. Unknown kinds return false.
func (v *Validator) IsValid(k types.RuleKind, options map[string]any, value any) bool {
	kd, ok := v.kinds[k]
	if !ok {
		return false
	}
	return kd.check(mergeOptions(kd.defaults, options), value)
}

// mergeOptions returns defaults overlaid with options; options win.
func mergeOptions(defaults, options map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(options))
	maps.Copy(merged, defaults)
	maps.Copy(merged, options)
	return merged
}
