package models

import (
	"fmt"

	"github.com/desertthunder/xsx/internal/shared"
)

// IdentifierMap records source to destination identifiers per entity type for one run.
//
// Entries are append-only. A source id maps at most once, and a destination id is claimed by at
// most one source id unless the pair was recorded with [IdentifierMap.Converge].
type IdentifierMap struct {
	forward map[EntityType]map[string]string
	reverse map[EntityType]map[string]string
}

// NewIdentifierMap returns an empty map.
func NewIdentifierMap() *IdentifierMap {
	return &IdentifierMap{
		forward: make(map[EntityType]map[string]string),
		reverse: make(map[EntityType]map[string]string),
	}
}

// Put maps sourceID to destID. Remapping a source id, or mapping a second source id onto a
// destination id that is already claimed, fails with [shared.ErrAlreadyMapped].
func (m *IdentifierMap) Put(t EntityType, sourceID, destID string) error {
	if err := m.check(t, sourceID, destID); err != nil {
		return err
	}
	if owner, ok := m.reverse[t][destID]; ok {
		return fmt.Errorf("%w: %s %s already claimed by %s", shared.ErrAlreadyMapped, t.Singular(), destID, owner)
	}
	m.set(t, sourceID, destID)
	return nil
}

// Converge maps sourceID to destID even when other source ids already point at destID.
// Used for dependencies matched by name, where two source records can legitimately share a target.
func (m *IdentifierMap) Converge(t EntityType, sourceID, destID string) error {
	if err := m.check(t, sourceID, destID); err != nil {
		return err
	}
	m.set(t, sourceID, destID)
	return nil
}

// Get returns the destination id for sourceID.
func (m *IdentifierMap) Get(t EntityType, sourceID string) (string, bool) {
	id, ok := m.forward[t][sourceID]
	return id, ok
}

// Source returns the first source id mapped onto destID.
func (m *IdentifierMap) Source(t EntityType, destID string) (string, bool) {
	id, ok := m.reverse[t][destID]
	return id, ok
}

// Len returns the number of source ids mapped for t.
func (m *IdentifierMap) Len(t EntityType) int {
	return len(m.forward[t])
}

// Entries returns a copy of the forward table for t.
func (m *IdentifierMap) Entries(t EntityType) map[string]string {
	out := make(map[string]string, len(m.forward[t]))
	for k, v := range m.forward[t] {
		out[k] = v
	}
	return out
}

func (m *IdentifierMap) check(t EntityType, sourceID, destID string) error {
	if sourceID == "" || destID == "" {
		return fmt.Errorf("%w: empty identifier for %s", shared.ErrInvalidInput, t.Singular())
	}
	if existing, ok := m.forward[t][sourceID]; ok {
		return fmt.Errorf("%w: %s %s -> %s", shared.ErrAlreadyMapped, t.Singular(), sourceID, existing)
	}
	return nil
}

func (m *IdentifierMap) set(t EntityType, sourceID, destID string) {
	if m.forward[t] == nil {
		m.forward[t] = make(map[string]string)
		m.reverse[t] = make(map[string]string)
	}
	m.forward[t][sourceID] = destID
	if _, ok := m.reverse[t][destID]; !ok {
		m.reverse[t][destID] = sourceID
	}
}
