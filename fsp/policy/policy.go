package policy

import (
	"math/big"

	"flarewatch/fsp/epoch"
)

// SigningPolicy is the immutable, authoritative roster for one reward
// epoch: produced only by a successful SigningPolicyBuilder.Build call, and
// replaced atomically (by pointer assignment) at the voting round whose id
// equals StartVotingRound.
type SigningPolicy struct {
	RewardEpoch      epoch.RewardEpoch
	VotePowerBlock   uint64
	StartVotingRound uint64
	Threshold        uint16
	Seed             *big.Int
	RawBytes         []byte

	Entities []*Entity // ordered as SigningPolicyInitialized.Voters was
	Mapper   *EntityMapper
}
