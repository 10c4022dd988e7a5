package record

// Condition selects related records. It is either a Where or a Predicate.
type Condition interface {
	matches(r *Record) bool
}

// Where matches records whose attributes loosely equal every given value.
// An attribute unknown to the record never matches.
type Where map[string]any

func (w Where) matches(r *Record) bool {
	for attr, want := range w {
		got, err := r.Get(attr)
		if err != nil || !looseEqual(got, want) {
			return false
		}
	}
	return true
}

// Predicate matches records for which it returns true.
type Predicate func(*Record) bool

func (p Predicate) matches(r *Record) bool {
	return p != nil && p(r)
}
