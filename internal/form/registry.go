package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cloudadept/cloudadept-api/internal/models"
	"github.com/cloudadept/cloudadept-api/internal/observability"
)

var (
	// ErrFormNotFound is returned for unknown or evicted form ids.
	ErrFormNotFound = errors.New("contact form not found")
	// ErrRegistryFull is returned by Mount once the active form limit is reached.
	ErrRegistryFull = errors.New("too many active contact forms")
)

const defaultMaxForms = 1000

// Registry keeps the mounted form instances of the process.
type Registry struct {
	rules     Validator
	submitter Submitter
	idleTTL   time.Duration
	maxForms  int
	logger    zerolog.Logger

	mu    sync.RWMutex
	forms map[string]*Form
}

// NewRegistry constructs an empty registry holding at most maxForms forms.
func NewRegistry(rules Validator, submitter Submitter, idleTTL time.Duration, maxForms int, logger zerolog.Logger) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	if maxForms <= 0 {
		maxForms = defaultMaxForms
	}

	return &Registry{
		rules:     rules,
		submitter: submitter,
		idleTTL:   idleTTL,
		maxForms:  maxForms,
		logger:    logger.With().Str("component", "form_registry").Logger(),
		forms:     make(map[string]*Form),
	}
}

// Mount creates and registers a new idle form.
func (r *Registry) Mount(origin models.FormOrigin) (*Form, error) {
	r.mu.Lock()
	if len(r.forms) >= r.maxForms {
		r.mu.Unlock()
		r.logger.Warn().Int("max_forms", r.maxForms).Msg("contact form limit reached")
		return nil, ErrRegistryFull
	}
	f := New(uuid.NewString(), origin, r.rules, r.submitter, r.logger)
	r.forms[f.ID()] = f
	r.mu.Unlock()

	observability.ContactFormsActive().Inc()
	return f, nil
}

// Get returns a mounted form.
func (r *Registry) Get(id string) (*Form, error) {
	r.mu.RLock()
	f, ok := r.forms[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrFormNotFound
	}
	return f, nil
}

// Unmount closes and forgets a form.
func (r *Registry) Unmount(id string) error {
	r.mu.Lock()
	f, ok := r.forms[id]
	if ok {
		delete(r.forms, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrFormNotFound
	}

	f.Close()
	observability.ContactFormsActive().Dec()
	return nil
}

// Len returns the number of mounted forms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.forms)
}

// Evict unmounts forms idle since before now minus the idle TTL. Forms with a
// submission in flight are kept.
func (r *Registry) Evict(now time.Time) int {
	cutoff := now.Add(-r.idleTTL)

	r.mu.RLock()
	candidates := make([]*Form, 0, len(r.forms))
	for _, f := range r.forms {
		candidates = append(candidates, f)
	}
	r.mu.RUnlock()

	evicted := 0
	for _, f := range candidates {
		// The idle check and the close share the form lock, so a submit
		// either starts first and keeps the form or sees it closed.
		if !f.closeIfIdleSince(cutoff) {
			continue
		}
		if r.forget(f) {
			evicted++
		}
	}

	if evicted > 0 {
		r.logger.Debug().Int("evicted", evicted).Msg("evicted idle contact forms")
	}
	return evicted
}

// forget drops f from the map if it is still the form registered under its id.
func (r *Registry) forget(f *Form) bool {
	r.mu.Lock()
	current, ok := r.forms[f.ID()]
	if ok && current == f {
		delete(r.forms, f.ID())
	}
	r.mu.Unlock()

	if !ok || current != f {
		return false
	}
	observability.ContactFormsActive().Dec()
	return true
}

// Run evicts idle forms until ctx is cancelled, then unmounts everything.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case now := <-ticker.C:
			r.Evict(now)
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.forms))
	for id := range r.forms {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		_ = r.Unmount(id)
	}
}
