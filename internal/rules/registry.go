package rules

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
)

const defaultCacheSize = 256

// Registry holds the loaded trial rule documents for a process. Documents
// are read-only after load and safe to share across concurrent evaluations;
// Reload swaps the whole set atomically.
type Registry struct {
	dir string
	log *logrus.Logger

	mu    sync.RWMutex
	order []string
	cache *lru.Cache[string, *domain.RuleDocument]
}

// NewRegistry loads all rule documents under dir into an LRU-backed
// registry keyed by trial id.
func NewRegistry(dir string, logger *logrus.Logger) (*Registry, error) {
	cache, err := lru.New[string, *domain.RuleDocument](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating rule document cache: %w", err)
	}

	r := &Registry{dir: dir, log: logger, cache: cache}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the rules directory and replaces the registry contents.
func (r *Registry) Reload() error {
	docs, err := LoadDir(r.dir, r.log)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Purge()
	// The cache must hold the whole document set: an evicted trial would
	// silently drop out of All() and never be evaluated.
	if size := len(docs); size > defaultCacheSize {
		r.cache.Resize(size)
	} else {
		r.cache.Resize(defaultCacheSize)
	}
	r.order = r.order[:0]
	for _, doc := range docs {
		if _, exists := r.cache.Get(doc.TrialID); exists {
			r.log.WithField("trial_id", doc.TrialID).Warn("Duplicate trial id, keeping first document")
			continue
		}
		r.cache.Add(doc.TrialID, doc)
		r.order = append(r.order, doc.TrialID)
	}

	r.log.WithFields(logrus.Fields{
		"rules_dir": r.dir,
		"trials":    len(r.order),
	}).Info("Loaded trial rule documents")
	return nil
}

// All returns the loaded documents in stable (file name) order.
func (r *Registry) All() []*domain.RuleDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]*domain.RuleDocument, 0, len(r.order))
	for _, id := range r.order {
		if doc, ok := r.cache.Get(id); ok {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Get returns one document by trial id.
func (r *Registry) Get(trialID string) (*domain.RuleDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.cache.Get(trialID)
	if !ok {
		return nil, fmt.Errorf("trial %s: %w", trialID, domain.ErrNotFound)
	}
	return doc, nil
}

// Len returns the number of loaded documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
