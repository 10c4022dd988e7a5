package types

// Cardinality says how many related records a relation may hold.
type Cardinality string

// Relation cardinalities. The zero value is treated as CardinalityMany.
const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// Single reports whether the relation holds at most one record.
func (c Cardinality) Single() bool {
	return c == CardinalityOne
}

// Valid reports whether c is a known cardinality (empty counts as many).
func (c Cardinality) Valid() bool {
	return c == "" || c == CardinalityOne || c == CardinalityMany
}

// RelationDecl declares a relation from one record type to another.
// Link is the attribute on the owning record; RelatedLink is the attribute on
// the related records that must equal it.
type RelationDecl struct {
	Name        string      `json:"name" yaml:"name"`
	Model       string      `json:"model" yaml:"model"`
	Link        string      `json:"link" yaml:"link"`
	RelatedLink string      `json:"related_link" yaml:"related_link"`
	Cardinality Cardinality `json:"cardinality,omitempty" yaml:"cardinality,omitempty"`
}
