package validate

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"

	"flarewatch/fsp/events"
	"flarewatch/fsp/policy"
	"flarewatch/fsp/round"
	"flarewatch/sign"
)

// finalizationMessageHash computes ProtocolMessageRelayed.to_message(): the
// EIP-191 personal-sign hash of
// keccak(protocol_id:u8 ‖ voting_round_id:u32_be ‖ is_secure_random:u8 ‖ merkle_root:32).
func finalizationMessageHash(e events.ProtocolMessageRelayed) common.Hash {
	buf := make([]byte, 0, 1+4+1+32)
	buf = append(buf, e.ProtocolID)

	var roundBuf [4]byte
	binary.BigEndian.PutUint32(roundBuf[:], e.VotingRoundID)
	buf = append(buf, roundBuf[:]...)

	var secure byte
	if e.IsSecureRandom {
		secure = 1
	}
	buf = append(buf, secure)
	buf = append(buf, e.MerkleRoot[:]...)

	return sign.PersonalSignHash(sign.Keccak256(buf))
}

// signatureMatchesFinalization recovers the signer of ss over finalization's
// message hash and reports whether it equals the entity's
// signing-policy address.
func signatureMatchesFinalization(finalization events.ProtocolMessageRelayed, ss round.Submission[events.SubmitSignaturesPayload], entity *policy.Entity) (bool, error) {
	hash := finalizationMessageHash(finalization)
	signer, err := sign.RecoverSigner(hash, ss.Payload.Signature)
	if err != nil {
		return false, err
	}
	return signer == entity.SigningPolicyAddress, nil
}
