package record

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Save validates the record and, when every rule passes, persists it.
//
// It returns false with a nil error when validation fails; the failures are
// available from InvalidAttributes and nothing is written. An existing
// record that has not changed is not written again. Errors are reserved for
// structural problems: a missing store binding or a failing store.
func (r *Record) Save(ctx context.Context) (bool, error) {
	if !r.validate() {
		r.reg.Logger().Debug("save aborted, record invalid",
			zap.String("type", r.typ.Name),
			zap.Any("invalid", r.invalid))
		return false, nil
	}
	if r.exists && !r.dirty {
		return true, nil
	}
	now := clock()
	for _, p := range policiesFor(r.typ) {
		if err := p.beforePersist(r, now); err != nil {
			return false, err
		}
	}
	if err := r.persist(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// validate runs every declared rule and updates the invalid-attribute map.
// A required rule checks the value against every rule of its attribute;
// any failure is recorded as a required failure and stops further checks
// on that attribute for this pass. A passing rule only clears a failure
// left over from an earlier pass.
func (r *Record) validate() bool {
	failed := make(map[string]bool)
	missing := make(map[string]bool)
	for _, rule := range r.typ.Rules {
		attr := rule.Attribute
		if r.typ.IsPrimaryKey(attr) || missing[attr] {
			continue
		}
		value := r.values[attr]
		if rule.Kind == types.RuleRequired {
			if ok, _ := r.ValidateAttribute(value, r.RulesForAttribute(attr)...); !ok {
				r.invalid[attr] = types.Failure{Rule: rule.Kind}
				missing[attr] = true
				failed[attr] = true
				continue
			}
		} else if value != nil {
			if ok, _ := r.ValidateAttribute(value, rule); !ok {
				r.invalid[attr] = types.Failure{Rule: rule.Kind, Value: value}
				failed[attr] = true
				continue
			}
		}
		if !failed[attr] {
			delete(r.invalid, attr)
		}
	}
	return len(r.invalid) == 0
}

// ValidateAttribute reports whether value passes every rule. All rules are
// evaluated. Calling it without rules is a programming error and returns
// types.ErrMissingRules.
func (r *Record) ValidateAttribute(value any, rules ...types.Rule) (bool, error) {
	if len(rules) == 0 {
		return false, types.ErrMissingRules
	}
	v := r.reg.Validator()
	valid := true
	for _, rule := range rules {
		if !v.IsValid(rule.Kind, rule.Options, value) {
			valid = false
		}
	}
	return valid, nil
}

// RulesForAttribute returns the rules declared for attr in declaration
// order, or nil when attr is not an attribute of the type.
func (r *Record) RulesForAttribute(attr string) []types.Rule {
	return r.typ.RulesFor(attr)
}

// persist writes the record through the store bound to its type and merges
// the stored row back.
func (r *Record) persist(ctx context.Context) error {
	store, err := r.reg.Adapter(r.typ.Name)
	if err != nil {
		return err
	}
	row, err := store.InsertOrUpdate(ctx, r.typ.Table, types.Write{
		PrimaryKeys: r.typ.PrimaryKeys,
		Keys:        r.keys,
		Values:      r.ToMap(),
		Exists:      r.exists,
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", r.typ.Name, err)
	}
	for col, val := range row {
		if r.HasAttribute(col) {
			r.values[col] = val
		}
	}
	r.exists = true
	r.dirty = false
	r.keys = r.primaryKeyValues()
	return nil
}
