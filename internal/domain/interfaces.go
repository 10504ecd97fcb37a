package domain

import "context"

// TraceWriter is the injected audit sink. Each trial evaluation emits one
// structured record; the concrete transport (log stream, append-only file,
// SQLite) is an implementation detail the core never depends on.
type TraceWriter interface {
	Write(ctx context.Context, trace *TrialTrace) error
}

// RuleSource provides read-only access to the loaded trial rule documents.
// Implementations must be safe for concurrent readers after initial load.
type RuleSource interface {
	All() []*RuleDocument
	Get(trialID string) (*RuleDocument, error)
}

// RuleDocument is one trial's declarative rule sets as authored in its
// structured document: two independent rule forests, inclusion and exclusion.
type RuleDocument struct {
	TrialID   string `yaml:"trial_id" json:"trial_id" validate:"required"`
	Title     string `yaml:"title" json:"title"`
	Inclusion []Rule `yaml:"inclusion" json:"inclusion"`
	Exclusion []Rule `yaml:"exclusion" json:"exclusion"`
}

// Empty reports whether the document carries no rules at all. Such a trial
// is evaluated to an undecided verdict with an explicit error marker rather
// than being skipped.
func (d *RuleDocument) Empty() bool {
	return len(d.Inclusion) == 0 && len(d.Exclusion) == 0
}
