package events

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Record is an ABI-decoded log: the event's arguments keyed by name, exactly
// the shape accounts/abi.Arguments.Unpack(...) + UnpackIntoMap produces.
// Decoders never see raw log bytes or topic hashes; that step belongs to the
// chain I/O collaborator (spec.md §1's out-of-scope ABI loading).
type Record map[string]any

// Decode dispatches an ABI-decoded record for the named event to its typed
// variant. blockTimestampS is the containing block's timestamp, required for
// the two event kinds that don't carry their own timestamp field.
func Decode(eventName string, r Record, blockTimestampS int64) (Kind, any, error) {
	switch eventName {
	case "SigningPolicyInitialized":
		v, err := decodeSigningPolicyInitialized(r)
		return KindSigningPolicyInitialized, v, err
	case "VoterRegistered":
		v, err := decodeVoterRegistered(r)
		return KindVoterRegistered, v, err
	case "VoterRegistrationInfo":
		v, err := decodeVoterRegistrationInfo(r)
		return KindVoterRegistrationInfo, v, err
	case "VoterRemoved":
		v, err := decodeVoterRemoved(r)
		return KindVoterRemoved, v, err
	case "VotePowerBlockSelected":
		v, err := decodeVotePowerBlockSelected(r)
		return KindVotePowerBlockSelected, v, err
	case "RandomAcquisitionStarted":
		v, err := decodeRandomAcquisitionStarted(r)
		return KindRandomAcquisitionStarted, v, err
	case "ProtocolMessageRelayed":
		v, err := decodeProtocolMessageRelayed(r, blockTimestampS)
		return KindProtocolMessageRelayed, v, err
	default:
		return KindUnknown, nil, fmt.Errorf("decode event %q: unrecognised name", eventName)
	}
}

func field(r Record, name string) (any, error) {
	v, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("missing field %q", name)
	}
	return v, nil
}

func fieldAddress(r Record, name string) (common.Address, error) {
	v, err := field(r, name)
	if err != nil {
		return common.Address{}, err
	}
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("field %q: expected address, got %T", name, v)
	}
	return a, nil
}

func fieldAddresses(r Record, name string) ([]common.Address, error) {
	v, err := field(r, name)
	if err != nil {
		return nil, err
	}
	a, ok := v.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("field %q: expected []address, got %T", name, v)
	}
	return a, nil
}

func fieldBigInt(r Record, name string) (*big.Int, error) {
	v, err := field(r, name)
	if err != nil {
		return nil, err
	}
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	default:
		return nil, fmt.Errorf("field %q: expected *big.Int, got %T", name, v)
	}
}

func fieldUint64(r Record, name string) (uint64, error) {
	n, err := fieldBigInt(r, name)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func fieldUint16Slice(r Record, name string) ([]uint16, error) {
	v, err := field(r, name)
	if err != nil {
		return nil, err
	}
	switch s := v.(type) {
	case []uint16:
		return s, nil
	case []*big.Int:
		out := make([]uint16, len(s))
		for i, n := range s {
			out[i] = uint16(n.Uint64())
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: expected []uint16, got %T", name, v)
	}
}

func fieldUint64Slice(r Record, name string) ([]uint64, error) {
	v, err := field(r, name)
	if err != nil {
		return nil, err
	}
	switch s := v.(type) {
	case []uint64:
		return s, nil
	case []*big.Int:
		out := make([]uint64, len(s))
		for i, n := range s {
			out[i] = n.Uint64()
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: expected []uint64, got %T", name, v)
	}
}

func fieldBytes(r Record, name string) ([]byte, error) {
	v, err := field(r, name)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("field %q: expected []byte, got %T", name, v)
	}
	return b, nil
}

func fieldBytes32Slice(r Record, name string) ([][]byte, error) {
	v, err := field(r, name)
	if err != nil {
		return nil, err
	}
	switch s := v.(type) {
	case [][32]byte:
		out := make([][]byte, len(s))
		for i := range s {
			out[i] = append([]byte(nil), s[i][:]...)
		}
		return out, nil
	case [][]byte:
		return s, nil
	default:
		return nil, fmt.Errorf("field %q: expected [][32]byte, got %T", name, v)
	}
}

func fieldBytes32(r Record, name string) ([32]byte, error) {
	v, err := field(r, name)
	if err != nil {
		return [32]byte{}, err
	}
	switch b := v.(type) {
	case [32]byte:
		return b, nil
	case []byte:
		var out [32]byte
		copy(out[:], b)
		return out, nil
	default:
		return [32]byte{}, fmt.Errorf("field %q: expected [32]byte, got %T", name, v)
	}
}

func fieldBool(r Record, name string) (bool, error) {
	v, err := field(r, name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q: expected bool, got %T", name, v)
	}
	return b, nil
}

func decodeSigningPolicyInitialized(r Record) (SigningPolicyInitialized, error) {
	rewardEpochID, err := fieldUint64(r, "rewardEpochId")
	if err != nil {
		return SigningPolicyInitialized{}, err
	}
	startVotingRoundID, err := fieldUint64(r, "startVotingRoundId")
	if err != nil {
		return SigningPolicyInitialized{}, err
	}
	threshold, err := fieldUint64(r, "threshold")
	if err != nil {
		return SigningPolicyInitialized{}, err
	}
	seed, err := fieldBigInt(r, "seed")
	if err != nil {
		return SigningPolicyInitialized{}, err
	}
	voters, err := fieldAddresses(r, "voters")
	if err != nil {
		return SigningPolicyInitialized{}, err
	}
	weights, err := fieldUint16Slice(r, "weights")
	if err != nil {
		return SigningPolicyInitialized{}, err
	}
	policyBytes, err := fieldBytes(r, "signingPolicyBytes")
	if err != nil {
		return SigningPolicyInitialized{}, err
	}
	timestamp, err := fieldUint64(r, "timestamp")
	if err != nil {
		return SigningPolicyInitialized{}, err
	}
	return SigningPolicyInitialized{
		RewardEpochID:      rewardEpochID,
		StartVotingRoundID: startVotingRoundID,
		Threshold:          uint16(threshold),
		Seed:               seed,
		Voters:             voters,
		Weights:            weights,
		SigningPolicyBytes: policyBytes,
		TimestampS:         int64(timestamp),
	}, nil
}

func decodeVoterRegistered(r Record) (VoterRegistered, error) {
	rewardEpochID, err := fieldUint64(r, "rewardEpochId")
	if err != nil {
		return VoterRegistered{}, err
	}
	voter, err := fieldAddress(r, "voter")
	if err != nil {
		return VoterRegistered{}, err
	}
	signingPolicyAddr, err := fieldAddress(r, "signingPolicyAddress")
	if err != nil {
		return VoterRegistered{}, err
	}
	submitAddr, err := fieldAddress(r, "submitAddress")
	if err != nil {
		return VoterRegistered{}, err
	}
	submitSigAddr, err := fieldAddress(r, "submitSignaturesAddress")
	if err != nil {
		return VoterRegistered{}, err
	}
	pk1, err := fieldBytes(r, "publicKeyPart1")
	if err != nil {
		return VoterRegistered{}, err
	}
	pk2, err := fieldBytes(r, "publicKeyPart2")
	if err != nil {
		return VoterRegistered{}, err
	}
	weight, err := fieldUint64(r, "registrationWeight")
	if err != nil {
		return VoterRegistered{}, err
	}
	return VoterRegistered{
		RewardEpochID:           rewardEpochID,
		Voter:                   voter,
		SigningPolicyAddress:    signingPolicyAddr,
		SubmitAddress:           submitAddr,
		SubmitSignaturesAddress: submitSigAddr,
		PublicKey:               append(append([]byte{}, pk1...), pk2...),
		RegistrationWeight:      weight,
	}, nil
}

func decodeVoterRegistrationInfo(r Record) (VoterRegistrationInfo, error) {
	rewardEpochID, err := fieldUint64(r, "rewardEpochId")
	if err != nil {
		return VoterRegistrationInfo{}, err
	}
	voter, err := fieldAddress(r, "voter")
	if err != nil {
		return VoterRegistrationInfo{}, err
	}
	delegationAddr, err := fieldAddress(r, "delegationAddress")
	if err != nil {
		return VoterRegistrationInfo{}, err
	}
	feeBips, err := fieldUint64(r, "delegationFeeBIPS")
	if err != nil {
		return VoterRegistrationInfo{}, err
	}
	wNatWeight, err := fieldUint64(r, "wNatWeight")
	if err != nil {
		return VoterRegistrationInfo{}, err
	}
	wNatCapped, err := fieldUint64(r, "wNatCappedWeight")
	if err != nil {
		return VoterRegistrationInfo{}, err
	}
	nodeIDs, err := fieldBytes32Slice(r, "nodeIds")
	if err != nil {
		return VoterRegistrationInfo{}, err
	}
	nodeWeights, err := fieldUint64Slice(r, "nodeWeights")
	if err != nil {
		return VoterRegistrationInfo{}, err
	}
	return VoterRegistrationInfo{
		RewardEpochID:     rewardEpochID,
		Voter:             voter,
		DelegationAddress: delegationAddr,
		DelegationFeeBIPS: uint16(feeBips),
		WNatWeight:        wNatWeight,
		WNatCappedWeight:  wNatCapped,
		NodeIDs:           nodeIDs,
		NodeWeights:       nodeWeights,
	}, nil
}

func decodeVoterRemoved(r Record) (VoterRemoved, error) {
	rewardEpochID, err := fieldUint64(r, "rewardEpochId")
	if err != nil {
		return VoterRemoved{}, err
	}
	voter, err := fieldAddress(r, "voter")
	if err != nil {
		return VoterRemoved{}, err
	}
	return VoterRemoved{RewardEpochID: rewardEpochID, Voter: voter}, nil
}

func decodeVotePowerBlockSelected(r Record) (VotePowerBlockSelected, error) {
	rewardEpochID, err := fieldUint64(r, "rewardEpochId")
	if err != nil {
		return VotePowerBlockSelected{}, err
	}
	votePowerBlock, err := fieldUint64(r, "votePowerBlock")
	if err != nil {
		return VotePowerBlockSelected{}, err
	}
	timestamp, err := fieldUint64(r, "timestamp")
	if err != nil {
		return VotePowerBlockSelected{}, err
	}
	return VotePowerBlockSelected{
		RewardEpochID:  rewardEpochID,
		VotePowerBlock: votePowerBlock,
		TimestampS:     int64(timestamp),
	}, nil
}

func decodeRandomAcquisitionStarted(r Record) (RandomAcquisitionStarted, error) {
	rewardEpochID, err := fieldUint64(r, "rewardEpochId")
	if err != nil {
		return RandomAcquisitionStarted{}, err
	}
	timestamp, err := fieldUint64(r, "timestamp")
	if err != nil {
		return RandomAcquisitionStarted{}, err
	}
	return RandomAcquisitionStarted{RewardEpochID: rewardEpochID, TimestampS: int64(timestamp)}, nil
}

func decodeProtocolMessageRelayed(r Record, blockTimestampS int64) (ProtocolMessageRelayed, error) {
	protocolID, err := fieldUint64(r, "protocolId")
	if err != nil {
		return ProtocolMessageRelayed{}, err
	}
	votingRoundID, err := fieldUint64(r, "votingRoundId")
	if err != nil {
		return ProtocolMessageRelayed{}, err
	}
	isSecureRandom, err := fieldBool(r, "isSecureRandom")
	if err != nil {
		return ProtocolMessageRelayed{}, err
	}
	merkleRoot, err := fieldBytes32(r, "merkleRoot")
	if err != nil {
		return ProtocolMessageRelayed{}, err
	}
	return ProtocolMessageRelayed{
		ProtocolID:     uint8(protocolID),
		VotingRoundID:  uint32(votingRoundID),
		IsSecureRandom: isSecureRandom,
		MerkleRoot:     merkleRoot,
		TimestampS:     blockTimestampS,
	}, nil
}
