package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDecodeSigningPolicyInitialized(t *testing.T) {
	voters := []common.Address{common.HexToAddress("0x1"), common.HexToAddress("0x2")}
	r := Record{
		"rewardEpochId":      big.NewInt(5),
		"startVotingRoundId": big.NewInt(1000),
		"threshold":          big.NewInt(5000),
		"seed":               big.NewInt(42),
		"voters":             voters,
		"weights":            []*big.Int{big.NewInt(100), big.NewInt(200)},
		"signingPolicyBytes": []byte{0x01, 0x02},
		"timestamp":          big.NewInt(1700000000),
	}

	kind, v, err := Decode("SigningPolicyInitialized", r, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if kind != KindSigningPolicyInitialized {
		t.Fatalf("kind = %v", kind)
	}
	spi, ok := v.(SigningPolicyInitialized)
	if !ok {
		t.Fatalf("unexpected type %T", v)
	}
	if spi.RewardEpochID != 5 || spi.StartVotingRoundID != 1000 || spi.Threshold != 5000 {
		t.Fatalf("unexpected scalar fields: %+v", spi)
	}
	if len(spi.Voters) != 2 || spi.Voters[1] != voters[1] {
		t.Fatalf("voters mismatch: %+v", spi.Voters)
	}
	if len(spi.Weights) != 2 || spi.Weights[0] != 100 {
		t.Fatalf("weights mismatch: %+v", spi.Weights)
	}
}

func TestDecodeMissingFieldFails(t *testing.T) {
	r := Record{"rewardEpochId": big.NewInt(1)}
	if _, _, err := Decode("VoterRemoved", r, 0); err == nil {
		t.Fatal("expected error for missing voter field")
	}
}

func TestDecodeProtocolMessageRelayedUsesBlockTimestamp(t *testing.T) {
	r := Record{
		"protocolId":     big.NewInt(100),
		"votingRoundId":  big.NewInt(55),
		"isSecureRandom": true,
		"merkleRoot":     [32]byte{0xAA},
	}
	_, v, err := Decode("ProtocolMessageRelayed", r, 1234)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pmr := v.(ProtocolMessageRelayed)
	if pmr.TimestampS != 1234 {
		t.Fatalf("timestamp = %d, want 1234", pmr.TimestampS)
	}
	if pmr.ProtocolID != 100 || pmr.VotingRoundID != 55 || !pmr.IsSecureRandom {
		t.Fatalf("unexpected fields: %+v", pmr)
	}
}

func TestDecodeUnknownEventName(t *testing.T) {
	if _, _, err := Decode("SomethingElse", Record{}, 0); err == nil {
		t.Fatal("expected error for unrecognised event name")
	}
}
