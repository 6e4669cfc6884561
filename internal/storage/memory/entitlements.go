package memory

import (
	"context"
	"sync"
)

// Entitlements is an in-process grant table for development and tests.
type Entitlements struct {
	mu      sync.Mutex
	blanket map[string]bool
	grants  map[string]map[string]bool // callerID -> jobID -> granted
}

// NewEntitlements returns an empty grant table.
func NewEntitlements() *Entitlements {
	return &Entitlements{
		blanket: make(map[string]bool),
		grants:  make(map[string]map[string]bool),
	}
}

// GrantBlanket records a subscription-style grant for a caller.
func (e *Entitlements) GrantBlanket(callerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blanket[callerID] = true
}

// GrantJob records a per-job grant for a caller.
func (e *Entitlements) GrantJob(callerID, jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants[callerID] == nil {
		e.grants[callerID] = make(map[string]bool)
	}
	e.grants[callerID][jobID] = true
}

func (e *Entitlements) HasBlanketGrant(_ context.Context, callerID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blanket[callerID], nil
}

func (e *Entitlements) HasGrant(_ context.Context, callerID, jobID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grants[callerID][jobID], nil
}
