package record

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

// Link says how a relation derives a link value from a record: either from
// an attribute or from a function. The zero Link is invalid.
type Link struct {
	attr string
	fn   func(*Record) any
}

// LinkAttribute links by the named attribute.
func LinkAttribute(name string) Link { return Link{attr: name} }

// LinkFunc links by the value fn computes from a record.
func LinkFunc(fn func(*Record) any) Link { return Link{fn: fn} }

// IsZero reports whether l links by nothing.
func (l Link) IsZero() bool { return l.attr == "" && l.fn == nil }

// Attribute returns the link attribute, or "" for a function link.
func (l Link) Attribute() string { return l.attr }

func (l Link) String() string {
	if l.fn != nil {
		return "func"
	}
	return l.attr
}

// value returns the link value of r. It is the single dispatch point
// between attribute and function links.
func (l Link) value(r *Record) (any, error) {
	if l.fn != nil {
		return l.fn(r), nil
	}
	return r.Get(l.attr)
}

// key returns the key a related record is held under: its link value, or
// its primary key when it lacks the link attribute.
func (l Link) key(r *Record) (string, error) {
	if l.fn != nil || r.HasAttribute(l.attr) {
		v, err := l.value(r)
		if err != nil {
			return "", err
		}
		return fmt.Sprint(v), nil
	}
	if len(r.typ.PrimaryKeys) == 0 {
		return "", fmt.Errorf("%w: %s has neither %q nor a primary key", types.ErrRelationIntegrity, r.typ.Name, l.attr)
	}
	parts := make([]string, len(r.typ.PrimaryKeys))
	for i, k := range r.typ.PrimaryKeys {
		parts[i] = fmt.Sprint(r.values[k])
	}
	return strings.Join(parts, "|"), nil
}
