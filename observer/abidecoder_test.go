package observer

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"flarewatch/chainio"
	"flarewatch/fsp/events"
)

const testRelayABI = `[
	{"type":"event","name":"ProtocolMessageRelayed","anonymous":false,"inputs":[
		{"name":"protocolId","type":"uint256","indexed":false},
		{"name":"votingRoundId","type":"uint256","indexed":false},
		{"name":"isSecureRandom","type":"bool","indexed":false},
		{"name":"merkleRoot","type":"bytes32","indexed":false}
	]}
]`

func mustParseABI(t *testing.T, raw string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("abi.JSON: %v", err)
	}
	return parsed
}

func TestABIDecoderDecodesKnownEvent(t *testing.T) {
	relayABI := mustParseABI(t, testRelayABI)
	ev := relayABI.Events["ProtocolMessageRelayed"]

	var merkleRoot [32]byte
	merkleRoot[0] = 0xAB

	data, err := ev.Inputs.Pack(big.NewInt(100), big.NewInt(42), true, merkleRoot)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	decoder := NewABIDecoder(relayABI)
	log := chainio.Log{
		Topics: []common.Hash{ev.ID},
		Data:   data,
	}

	kind, v, err := decoder.DecodeLog(log, 12345)
	if err != nil {
		t.Fatalf("DecodeLog: %v", err)
	}
	if kind != events.KindProtocolMessageRelayed {
		t.Fatalf("kind = %v, want ProtocolMessageRelayed", kind)
	}
	pmr, ok := v.(events.ProtocolMessageRelayed)
	if !ok {
		t.Fatalf("value type = %T, want ProtocolMessageRelayed", v)
	}
	if pmr.ProtocolID != 100 || pmr.VotingRoundID != 42 || !pmr.IsSecureRandom || pmr.MerkleRoot != merkleRoot {
		t.Fatalf("decoded = %+v", pmr)
	}
	if pmr.TimestampS != 12345 {
		t.Fatalf("TimestampS = %d, want 12345", pmr.TimestampS)
	}
}

func TestABIDecoderSkipsUnknownTopic(t *testing.T) {
	decoder := NewABIDecoder(mustParseABI(t, testRelayABI))
	log := chainio.Log{Topics: []common.Hash{{0xFF}}}

	kind, v, err := decoder.DecodeLog(log, 0)
	if err != nil {
		t.Fatalf("DecodeLog: %v", err)
	}
	if kind != events.KindUnknown || v != nil {
		t.Fatalf("got kind=%v v=%v, want KindUnknown/nil", kind, v)
	}
}

func TestABIDecoderSkipsLogWithNoTopics(t *testing.T) {
	decoder := NewABIDecoder(mustParseABI(t, testRelayABI))
	kind, v, err := decoder.DecodeLog(chainio.Log{}, 0)
	if err != nil {
		t.Fatalf("DecodeLog: %v", err)
	}
	if kind != events.KindUnknown || v != nil {
		t.Fatalf("got kind=%v v=%v, want KindUnknown/nil", kind, v)
	}
}
