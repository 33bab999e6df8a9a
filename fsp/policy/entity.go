// Package policy implements the signing-policy builder and the five-way
// address identity model: one canonical Entity per registered voter, and an
// EntityMapper that resolves any of its five addresses (or the union of all
// five) back to that Entity in a single lookup.
package policy

import "github.com/ethereum/go-ethereum/common"

// Node is one (node id, weight) pair a voter has delegated P-chain vote
// power to.
type Node struct {
	ID     []byte
	Weight uint64
}

// Entity is one registered voter for the lifetime of a reward epoch: its
// five correlated addresses, public key, node delegations, and weights.
// Immutable once a SigningPolicy has been built.
type Entity struct {
	IdentityAddress         common.Address
	SubmitAddress           common.Address
	SubmitSignaturesAddress common.Address
	SigningPolicyAddress    common.Address
	DelegationAddress       common.Address
	PublicKey               []byte

	Nodes []Node

	DelegationFeeBIPS  uint16
	WNatWeight         uint64
	WNatCappedWeight   uint64
	RegistrationWeight uint64 // the ¾-power reweighted value used on chain
	NormalizedWeight   uint16 // the integer weight published in the signing policy
}
