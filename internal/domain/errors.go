package domain

import "errors"

// Configuration-time errors. The evaluation path itself never surfaces an
// error for malformed input; it degrades to unknown per the closed-world
// policy. Only document loading can fail.
var (
	ErrNotFound            = errors.New("not found")
	ErrOntologyInvalid     = errors.New("ontology mapping document is invalid")
	ErrRuleDocumentInvalid = errors.New("trial rule document is invalid")
	ErrTrialRulesEmpty     = errors.New("trial_rules_empty")
)
