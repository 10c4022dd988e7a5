package types

// RuleKind names a validation check. The built-in kinds are listed below;
// further kinds can be registered on a validator.
type RuleKind string

// Built-in rule kinds.
const (
	RuleRequired RuleKind = "required"
	RuleString   RuleKind = "string"
	RuleInteger  RuleKind = "integer"
	RuleEmail    RuleKind = "email"
)

// Rule binds a rule kind and its options to one attribute of a record type.
type Rule struct {
	Attribute string         `json:"attribute" yaml:"attribute"`
	Kind      RuleKind       `json:"type" yaml:"type"`
	Options   map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Failure describes why an attribute is currently invalid. Value is nil for
// required failures.
type Failure struct {
	Rule  RuleKind `json:"rule"`
	Value any      `json:"value,omitempty"`
}
