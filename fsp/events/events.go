// Package events defines the typed signing-policy and finalization events the
// observer decodes from chain logs, plus the submit1/submit2/submitSignatures
// transaction payload types and parser.
//
// Event field names follow the ABI-decoded record layout recovered from
// original_source/observer/types.py's from_dict constructors (camelCase log
// field names map to these Go struct fields).
package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind tags which concrete event a Log decoded to, replacing the teacher's
// dynamic-dispatch Event interface with an explicit tagged union.
type Kind int

const (
	KindUnknown Kind = iota
	KindSigningPolicyInitialized
	KindVoterRegistered
	KindVoterRegistrationInfo
	KindVoterRemoved
	KindVotePowerBlockSelected
	KindRandomAcquisitionStarted
	KindProtocolMessageRelayed
)

func (k Kind) String() string {
	switch k {
	case KindSigningPolicyInitialized:
		return "SigningPolicyInitialized"
	case KindVoterRegistered:
		return "VoterRegistered"
	case KindVoterRegistrationInfo:
		return "VoterRegistrationInfo"
	case KindVoterRemoved:
		return "VoterRemoved"
	case KindVotePowerBlockSelected:
		return "VotePowerBlockSelected"
	case KindRandomAcquisitionStarted:
		return "RandomAcquisitionStarted"
	case KindProtocolMessageRelayed:
		return "ProtocolMessageRelayed"
	default:
		return "Unknown"
	}
}

// SigningPolicyInitialized is emitted once per reward epoch by the Relay
// contract, carrying the full voter roster and weights.
type SigningPolicyInitialized struct {
	RewardEpochID      uint64
	StartVotingRoundID uint64
	Threshold          uint16
	Seed               *big.Int
	Voters             []common.Address // signing_policy_address per voter, in roster order
	Weights            []uint16
	SigningPolicyBytes []byte
	TimestampS         int64
}

// VoterRegistered is emitted once per voter per reward epoch by the
// VoterRegistry contract.
type VoterRegistered struct {
	RewardEpochID           uint64
	Voter                   common.Address // identity address
	SigningPolicyAddress    common.Address
	SubmitAddress           common.Address
	SubmitSignaturesAddress common.Address
	PublicKey               []byte // concatenated secp256k1 x||y
	RegistrationWeight      uint64
}

// VoterRemoved is emitted when a voter is deregistered before a reward epoch
// it had been provisionally registered for begins.
type VoterRemoved struct {
	RewardEpochID uint64
	Voter         common.Address // identity address
}

// VoterRegistrationInfo is emitted once per voter per reward epoch by the
// FlareSystemsCalculator contract, carrying the weight breakdown and node
// delegations.
type VoterRegistrationInfo struct {
	RewardEpochID     uint64
	Voter             common.Address // identity address
	DelegationAddress common.Address
	DelegationFeeBIPS uint16
	WNatWeight        uint64
	WNatCappedWeight  uint64
	NodeIDs           [][]byte
	NodeWeights       []uint64
}

// VotePowerBlockSelected is emitted once per reward epoch by the
// FlareSystemsManager contract, pinning the block at which vote power is
// snapshotted.
type VotePowerBlockSelected struct {
	RewardEpochID  uint64
	VotePowerBlock uint64
	TimestampS     int64
}

// RandomAcquisitionStarted opens the voter-registration window for a reward
// epoch.
type RandomAcquisitionStarted struct {
	RewardEpochID uint64
	TimestampS    int64
}

// ProtocolMessageRelayed is emitted once per (protocol, round) finalization
// by the Relay contract, carrying the Merkle root that submitSignatures
// transactions are expected to have signed over.
type ProtocolMessageRelayed struct {
	ProtocolID      uint8
	VotingRoundID   uint32
	IsSecureRandom  bool
	MerkleRoot      [32]byte
	TimestampS      int64 // the containing block's timestamp, not an event field
}
