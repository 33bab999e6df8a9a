package policy

import "github.com/ethereum/go-ethereum/common"

// EntityMapper resolves any of an Entity's five addresses to that Entity,
// plus an omni index that's the union of all five — the hot path the
// observer loop uses to resolve a transaction sender without knowing which
// of the five address kinds it is.
//
// Invariant (spec.md §8): for every Entity e in the policy this mapper was
// built from, by_k(e.k) == e for each of the five kinds, and
// by_omni(e.k) == e for the same five. An address occurs as at most one
// kind across all entities of one signing policy.
type EntityMapper struct {
	byIdentity         map[common.Address]*Entity
	bySubmit           map[common.Address]*Entity
	bySubmitSignatures map[common.Address]*Entity
	bySigningPolicy    map[common.Address]*Entity
	byDelegation       map[common.Address]*Entity
	omni               map[common.Address]*Entity
}

// NewEntityMapper indexes entities across all five address kinds.
func NewEntityMapper(entities []*Entity) *EntityMapper {
	m := &EntityMapper{
		byIdentity:         make(map[common.Address]*Entity, len(entities)),
		bySubmit:           make(map[common.Address]*Entity, len(entities)),
		bySubmitSignatures: make(map[common.Address]*Entity, len(entities)),
		bySigningPolicy:    make(map[common.Address]*Entity, len(entities)),
		byDelegation:       make(map[common.Address]*Entity, len(entities)),
		omni:               make(map[common.Address]*Entity, len(entities)*5),
	}
	for _, e := range entities {
		m.byIdentity[e.IdentityAddress] = e
		m.bySubmit[e.SubmitAddress] = e
		m.bySubmitSignatures[e.SubmitSignaturesAddress] = e
		m.bySigningPolicy[e.SigningPolicyAddress] = e
		m.byDelegation[e.DelegationAddress] = e

		m.omni[e.IdentityAddress] = e
		m.omni[e.SubmitAddress] = e
		m.omni[e.SubmitSignaturesAddress] = e
		m.omni[e.SigningPolicyAddress] = e
		m.omni[e.DelegationAddress] = e
	}
	return m
}

// ByIdentity resolves an identity address to its Entity.
func (m *EntityMapper) ByIdentity(a common.Address) (*Entity, bool) { e, ok := m.byIdentity[a]; return e, ok }

// BySubmit resolves a submit address to its Entity.
func (m *EntityMapper) BySubmit(a common.Address) (*Entity, bool) { e, ok := m.bySubmit[a]; return e, ok }

// BySubmitSignatures resolves a submit-signatures address to its Entity.
func (m *EntityMapper) BySubmitSignatures(a common.Address) (*Entity, bool) {
	e, ok := m.bySubmitSignatures[a]
	return e, ok
}

// BySigningPolicy resolves a signing-policy address to its Entity.
func (m *EntityMapper) BySigningPolicy(a common.Address) (*Entity, bool) {
	e, ok := m.bySigningPolicy[a]
	return e, ok
}

// ByDelegation resolves a delegation address to its Entity.
func (m *EntityMapper) ByDelegation(a common.Address) (*Entity, bool) {
	e, ok := m.byDelegation[a]
	return e, ok
}

// ByOmni resolves any of the five address kinds to its Entity.
func (m *EntityMapper) ByOmni(a common.Address) (*Entity, bool) { e, ok := m.omni[a]; return e, ok }
