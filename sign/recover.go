// Package sign implements the message-hash recovery primitives the
// validation engine needs to check submitSignatures transactions against a
// finalization: Keccak-256 hashing, the EIP-191 personal-sign digest, and
// secp256k1 signature recovery with standard-v normalisation.
package sign

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Keccak256 hashes the concatenation of the given byte slices.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// Keccak256Hash hashes the concatenation of the given byte slices into a
// common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

// personalMessagePrefix is the EIP-191 "Ethereum Signed Message" preamble.
const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// PersonalSignHash computes the EIP-191 personal-sign digest of message: the
// Keccak-256 hash of the prefix, the decimal length of message, and message
// itself.
func PersonalSignHash(message []byte) common.Hash {
	prefixed := fmt.Sprintf("%s%d%s", personalMessagePrefix, len(message), message)
	return crypto.Keccak256Hash([]byte(prefixed))
}

// Signature is the (v, r, s) representation of a recoverable secp256k1
// signature, matching the on-chain submitSignatures payload layout.
type Signature struct {
	R [32]byte
	S [32]byte
	V byte
}

// normalizeV maps both the legacy (27/28) and the raw (0/1) recovery-id
// conventions onto the 0/1 range Ecrecover expects.
func normalizeV(v byte) byte {
	if v >= 27 {
		return v - 27
	}
	return v
}

// RecoverSigner recovers the address that produced sig over hash.
func RecoverSigner(hash common.Hash, sig Signature) (common.Address, error) {
	raw := make([]byte, 65)
	copy(raw[0:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = normalizeV(sig.V)

	pub, err := crypto.SigToPub(hash[:], raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// CommitHash computes the FTSO commit-hash that a submit1 transaction is
// expected to carry, given the submitting entity's submit address, the
// voting round id, the 256-bit random nonce from submit2's payload, and the
// remaining feed bytes of that same payload.
//
// commit_hash = keccak256(submitAddress ‖ votingRoundId:u32_be ‖ rnd:u256_be ‖ feedBytes)
func CommitHash(submitAddress common.Address, votingRoundID uint32, rnd [32]byte, feedBytes []byte) common.Hash {
	var roundBuf [4]byte
	roundBuf[0] = byte(votingRoundID >> 24)
	roundBuf[1] = byte(votingRoundID >> 16)
	roundBuf[2] = byte(votingRoundID >> 8)
	roundBuf[3] = byte(votingRoundID)

	return crypto.Keccak256Hash(submitAddress.Bytes(), roundBuf[:], rnd[:], feedBytes)
}
