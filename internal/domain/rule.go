package domain

// Condition is the comparison operator carried by a leaf rule.
type Condition string

const (
	CondGTE               Condition = "gte"
	CondLTE               Condition = "lte"
	CondEquals            Condition = "equals"
	CondNotEquals         Condition = "not_equals"
	CondContains          Condition = "contains"
	CondContainsAny       Condition = "contains_any"
	CondContainsOtherThan Condition = "contains_other_than"
	CondOntologyIsA       Condition = "ontology_is_a"
)

// IsValid reports whether the condition is one the evaluator recognizes.
// Unrecognized conditions are not an error: they evaluate to unknown.
func (c Condition) IsValid() bool {
	switch c {
	case CondGTE, CondLTE, CondEquals, CondNotEquals,
		CondContains, CondContainsAny, CondContainsOtherThan, CondOntologyIsA:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the condition.
func (c Condition) String() string {
	return string(c)
}

// RuleKind distinguishes the variants of the rule tagged union.
type RuleKind int

const (
	KindLeaf RuleKind = iota
	KindAll
	KindAny
	KindMalformed
)

// Rule is one node of a trial's inclusion or exclusion rule tree. A node is
// either a leaf predicate (Field/Condition/Value set) or a composite holding
// child rules under All (conjunction) or Any (disjunction). Arbitrary
// nesting depth is supported; a node matching none of the variants is
// malformed and evaluates to unknown rather than failing the trial.
type Rule struct {
	ID        string    `yaml:"id,omitempty" json:"id,omitempty"`
	Field     string    `yaml:"field,omitempty" json:"field,omitempty"`
	Condition Condition `yaml:"condition,omitempty" json:"condition,omitempty"`
	Value     any       `yaml:"value,omitempty" json:"value,omitempty"`
	Text      string    `yaml:"text,omitempty" json:"text,omitempty"`

	All []Rule `yaml:"and,omitempty" json:"and,omitempty"`
	Any []Rule `yaml:"or,omitempty" json:"or,omitempty"`
}

// Kind classifies the node. A node carrying both composite lists, or an
// empty composite, or a leaf without field and condition, is malformed.
func (r *Rule) Kind() RuleKind {
	hasAll := len(r.All) > 0
	hasAny := len(r.Any) > 0
	switch {
	case hasAll && hasAny:
		return KindMalformed
	case hasAll:
		return KindAll
	case hasAny:
		return KindAny
	case r.Field != "" && r.Condition != "":
		return KindLeaf
	default:
		return KindMalformed
	}
}

// IsComposite reports whether the node holds child rules.
func (r *Rule) IsComposite() bool {
	k := r.Kind()
	return k == KindAll || k == KindAny
}

// Children returns the child rules of a composite node, nil for leaves.
func (r *Rule) Children() []Rule {
	switch r.Kind() {
	case KindAll:
		return r.All
	case KindAny:
		return r.Any
	default:
		return nil
	}
}
