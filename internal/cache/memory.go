// Package cache stores computed scores between recomputes.
package cache

import (
	"context"
	"sync"

	"github.com/quantumlife/lifescore/internal/core"
)

// Memory is an in-process score cache
type Memory struct {
	mu     sync.RWMutex
	scores map[string]core.CachedScores
}

// NewMemory creates an empty in-process cache
func NewMemory() *Memory {
	return &Memory{scores: make(map[string]core.CachedScores)}
}

// Get returns the owner's cached scores
func (m *Memory) Get(_ context.Context, ownerID string) (core.CachedScores, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scores[ownerID]
	return s, ok, nil
}

// Set replaces the owner's cached scores
func (m *Memory) Set(_ context.Context, ownerID string, scores core.CachedScores) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[ownerID] = scores
	return nil
}

// Invalidate drops the owner's cached scores
func (m *Memory) Invalidate(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scores, ownerID)
	return nil
}

// Len returns the number of cached owners
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scores)
}
