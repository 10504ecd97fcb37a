package domain

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestRuleKind(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want RuleKind
	}{
		{
			name: "leaf",
			rule: Rule{ID: "r1", Field: "ecog_ps", Condition: CondLTE, Value: 1},
			want: KindLeaf,
		},
		{
			name: "conjunction",
			rule: Rule{All: []Rule{{Field: "a", Condition: CondEquals}}},
			want: KindAll,
		},
		{
			name: "disjunction",
			rule: Rule{Any: []Rule{{Field: "a", Condition: CondEquals}}},
			want: KindAny,
		},
		{
			name: "empty composite",
			rule: Rule{},
			want: KindMalformed,
		},
		{
			name: "leaf missing condition",
			rule: Rule{Field: "a"},
			want: KindMalformed,
		},
		{
			name: "both composites set",
			rule: Rule{All: []Rule{{Field: "a", Condition: CondEquals}}, Any: []Rule{{Field: "b", Condition: CondEquals}}},
			want: KindMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRuleYAMLNesting(t *testing.T) {
	doc := `
trial_id: T1
title: Nested composite
inclusion:
  - or:
      - field: current_stage
        condition: ontology_is_a
        value: Stage_IV
      - and:
          - field: current_stage
            condition: ontology_is_a
            value: Stage_III
          - field: ecog_ps
            condition: lte
            value: 1
exclusion: []
`
	var parsed RuleDocument
	if err := yaml.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(parsed.Inclusion) != 1 {
		t.Fatalf("expected 1 inclusion rule, got %d", len(parsed.Inclusion))
	}
	top := parsed.Inclusion[0]
	if top.Kind() != KindAny {
		t.Fatalf("expected disjunction, got %v", top.Kind())
	}
	if len(top.Any) != 2 {
		t.Fatalf("expected 2 children, got %d", len(top.Any))
	}
	if top.Any[1].Kind() != KindAll {
		t.Errorf("expected nested conjunction, got %v", top.Any[1].Kind())
	}
	if len(top.Any[1].All) != 2 {
		t.Errorf("expected 2 nested leaves, got %d", len(top.Any[1].All))
	}
}

func TestRuleDocumentEmpty(t *testing.T) {
	doc := &RuleDocument{TrialID: "T1"}
	if !doc.Empty() {
		t.Error("expected document with no rules to be empty")
	}

	doc.Exclusion = []Rule{{Field: "x", Condition: CondEquals}}
	if doc.Empty() {
		t.Error("expected document with exclusion rules to be non-empty")
	}
}

func TestConditionIsValid(t *testing.T) {
	valid := []Condition{
		CondGTE, CondLTE, CondEquals, CondNotEquals,
		CondContains, CondContainsAny, CondContainsOtherThan, CondOntologyIsA,
	}
	for _, c := range valid {
		if !c.IsValid() {
			t.Errorf("expected %s to be valid", c)
		}
	}
	if Condition("matches_regex").IsValid() {
		t.Error("expected unrecognized condition to be invalid")
	}
}
