// Package rules loads and validates trial rule documents. Documents are
// externally authored and must never crash patient evaluation: a malformed
// document is logged and skipped, and structural oddities inside a document
// degrade to unknown at evaluation time.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/trial-eligibility-engine/internal/domain"
)

// LoadDocument parses and validates one trial rule document.
func LoadDocument(path string, validate *validator.Validate) (*domain.RuleDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule document %s: %w", path, err)
	}

	var doc domain.RuleDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing rule document %s: %w", path, err)
	}
	if doc.TrialID == "" {
		// Fall back to the file name, matching how documents are keyed on disk.
		doc.TrialID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validating rule document %s: %w: %v", path, domain.ErrRuleDocumentInvalid, err)
	}
	return &doc, nil
}

// Lint walks a document's rule forests and reports structural issues that
// will degrade to unknown at evaluation time. Lint findings are warnings,
// not load failures.
func Lint(doc *domain.RuleDocument) []string {
	var findings []string
	var walk func(prefix string, r *domain.Rule)
	walk = func(prefix string, r *domain.Rule) {
		switch r.Kind() {
		case domain.KindMalformed:
			findings = append(findings, fmt.Sprintf("%s: malformed node (empty composite or leaf missing field/condition)", prefix))
		case domain.KindAll, domain.KindAny:
			for i := range r.Children() {
				child := r.Children()[i]
				walk(fmt.Sprintf("%s[%d]", prefix, i), &child)
			}
		case domain.KindLeaf:
			if !r.Condition.IsValid() {
				findings = append(findings, fmt.Sprintf("%s: unrecognized condition %q", prefix, r.Condition))
			}
		}
	}

	for i := range doc.Inclusion {
		walk(fmt.Sprintf("inclusion[%d]", i), &doc.Inclusion[i])
	}
	for i := range doc.Exclusion {
		walk(fmt.Sprintf("exclusion[%d]", i), &doc.Exclusion[i])
	}
	return findings
}

// LoadDir loads every *.yaml document under dir, sorted by file name.
// Malformed documents are logged and skipped; the rest of the set still
// loads. An empty result is not an error here, callers decide.
func LoadDir(dir string, logger *logrus.Logger) ([]*domain.RuleDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading rules directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	validate := validator.New()
	docs := make([]*domain.RuleDocument, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := LoadDocument(path, validate)
		if err != nil {
			logger.WithError(err).WithField("document", name).Error("Skipping malformed rule document")
			continue
		}
		for _, finding := range Lint(doc) {
			logger.WithFields(logrus.Fields{
				"trial_id": doc.TrialID,
				"finding":  finding,
			}).Warn("Rule document lint finding")
		}
		docs = append(docs, doc)
	}

	return docs, nil
}
