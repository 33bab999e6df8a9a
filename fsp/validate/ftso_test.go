package validate

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"flarewatch/fsp/epoch"
	"flarewatch/fsp/events"
	"flarewatch/fsp/policy"
	"flarewatch/fsp/round"
	"flarewatch/sign"
)

func testFactory() epoch.Factory { return epoch.NewFactory(epoch.Songbird) }

func newFTSOBucket() *round.ProtocolBucket {
	return &round.ProtocolBucket{
		Submit1:          map[common.Address][]round.Submission[events.Submit1Payload]{},
		Submit2:          map[common.Address][]round.Submission[events.Submit2Payload]{},
		SubmitSignatures: map[common.Address][]round.Submission[events.SubmitSignaturesPayload]{},
	}
}

func signFinalization(t *testing.T, key *ecdsa.PrivateKey, e events.ProtocolMessageRelayed) sign.Signature {
	t.Helper()
	hash := finalizationMessageHash(e)
	raw, err := gethcrypto.Sign(hash[:], key)
	require.NoError(t, err)
	var s sign.Signature
	copy(s.R[:], raw[0:32])
	copy(s.S[:], raw[32:64])
	s.V = raw[64] + 27
	return s
}

func TestHappyFTSO(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	f := testFactory()
	v := f.VotingEpochByID(100)
	next := v.Next()

	entity := &policy.Entity{
		IdentityAddress:      common.HexToAddress("0xAA"),
		SubmitAddress:        common.HexToAddress("0xA1"),
		SigningPolicyAddress: gethcrypto.PubkeyToAddress(key.PublicKey),
	}

	vr := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}

	rnd := [32]byte{42}
	values := []events.FeedValue{{Present: true, Raw: [4]byte{0, 0, 0, 1}}}
	feedBytes := values[0].Raw[:]
	commit := sign.CommitHash(entity.SubmitAddress, uint32(v.ID()), rnd, feedBytes)

	vr.FTSO.Submit1[entity.IdentityAddress] = []round.Submission[events.Submit1Payload]{
		{Payload: events.Submit1Payload{VotingRoundID: uint32(v.ID()), CommitHash: commit}, Tx: round.WTxData{TimestampS: v.StartS() + 10}},
	}
	vr.FTSO.Submit2[entity.IdentityAddress] = []round.Submission[events.Submit2Payload]{
		{Payload: events.Submit2Payload{VotingRoundID: uint32(v.ID()), Rnd: rnd, Values: values}, Tx: round.WTxData{TimestampS: next.StartS() + 5}},
	}

	finalization := events.ProtocolMessageRelayed{ProtocolID: 100, VotingRoundID: uint32(v.ID()), TimestampS: next.StartS() + 45}
	vr.FTSO.Finalization = &finalization

	sig := signFinalization(t, key, finalization)
	vr.FTSO.SubmitSignatures[entity.IdentityAddress] = []round.Submission[events.SubmitSignaturesPayload]{
		{Payload: events.SubmitSignaturesPayload{VotingRoundID: uint32(v.ID()), Signature: sig}, Tx: round.WTxData{TimestampS: next.StartS() + 50}},
	}

	msgs := EvaluateFTSO(vr, entity, NewBuilder())
	require.Empty(t, msgs)
}

func TestMissingSubmit2FTSO(t *testing.T) {
	f := testFactory()
	v := f.VotingEpochByID(101)

	entity := &policy.Entity{IdentityAddress: common.HexToAddress("0xAA"), SubmitAddress: common.HexToAddress("0xA1")}
	vr := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}
	vr.FTSO.Submit1[entity.IdentityAddress] = []round.Submission[events.Submit1Payload]{
		{Payload: events.Submit1Payload{VotingRoundID: uint32(v.ID())}, Tx: round.WTxData{TimestampS: v.StartS() + 10}},
	}

	msgs := EvaluateFTSO(vr, entity, NewBuilder())
	require.Len(t, msgs, 2)
	require.Equal(t, LevelCritical, msgs[0].Level)
	require.Contains(t, msgs[0].Text, "no submit2 transaction, causing reveal offence")
	require.Equal(t, LevelError, msgs[1].Level)
	require.Contains(t, msgs[1].Text, "no submit signatures transaction")
}

func TestWrongRevealFTSO(t *testing.T) {
	f := testFactory()
	v := f.VotingEpochByID(102)
	next := v.Next()

	entity := &policy.Entity{IdentityAddress: common.HexToAddress("0xAA"), SubmitAddress: common.HexToAddress("0xA1")}
	vr := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}

	vr.FTSO.Submit1[entity.IdentityAddress] = []round.Submission[events.Submit1Payload]{
		{Payload: events.Submit1Payload{VotingRoundID: uint32(v.ID()), CommitHash: [32]byte{0x01}}, Tx: round.WTxData{TimestampS: v.StartS() + 10}},
	}
	vr.FTSO.Submit2[entity.IdentityAddress] = []round.Submission[events.Submit2Payload]{
		{Payload: events.Submit2Payload{VotingRoundID: uint32(v.ID()), Rnd: [32]byte{0x02}}, Tx: round.WTxData{TimestampS: next.StartS() + 5}},
	}

	msgs := EvaluateFTSO(vr, entity, NewBuilder())
	found := false
	for _, m := range msgs {
		if m.Level == LevelCritical && m.Text == "commit hash and reveal didn't match, causing reveal offence" {
			found = true
		}
	}
	require.True(t, found, "expected commit hash mismatch message, got %+v", msgs)
}

func TestSubmit2RevealDeadlineBoundary(t *testing.T) {
	f := testFactory()
	v := f.VotingEpochByID(103)
	next := v.Next()

	submissions := []round.Submission[events.Submit2Payload]{
		{Payload: events.Submit2Payload{VotingRoundID: uint32(v.ID())}, Tx: round.WTxData{TimestampS: next.RevealDeadline() - 1}},
	}
	_, ok := selectLatest(submissions, next.StartS(), next.RevealDeadline())
	require.True(t, ok, "submit2 one second before the reveal deadline should be accepted")

	submissions[0].Tx.TimestampS = next.RevealDeadline()
	_, ok = selectLatest(submissions, next.StartS(), next.RevealDeadline())
	require.False(t, ok, "submit2 exactly at the reveal deadline should be rejected")
}

func TestSubmitSignaturesGraceBoundary(t *testing.T) {
	f := testFactory()
	v := f.VotingEpochByID(104)
	next := v.Next()
	entity := &policy.Entity{IdentityAddress: common.HexToAddress("0xAA")}

	accepted := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}
	accepted.FTSO.SubmitSignatures[entity.IdentityAddress] = []round.Submission[events.SubmitSignaturesPayload]{
		{Payload: events.SubmitSignaturesPayload{VotingRoundID: uint32(v.ID())}, Tx: round.WTxData{TimestampS: next.StartS() + 55}},
	}
	msgs := EvaluateFTSO(accepted, entity, NewBuilder())
	for _, m := range msgs {
		require.NotEqual(t, "no submit signatures transaction", m.Text)
	}

	rejected := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}
	rejected.FTSO.SubmitSignatures[entity.IdentityAddress] = []round.Submission[events.SubmitSignaturesPayload]{
		{Payload: events.SubmitSignaturesPayload{VotingRoundID: uint32(v.ID())}, Tx: round.WTxData{TimestampS: next.StartS() + 56}},
	}
	msgsRejected := EvaluateFTSO(rejected, entity, NewBuilder())
	hasMissing := false
	for _, m := range msgsRejected {
		if m.Text == "no submit signatures transaction" {
			hasMissing = true
		}
	}
	require.True(t, hasMissing)
}

func TestWrongSignerFTSO(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	otherKey, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	f := testFactory()
	v := f.VotingEpochByID(105)
	next := v.Next()

	entity := &policy.Entity{
		IdentityAddress:      common.HexToAddress("0xAA"),
		SigningPolicyAddress: gethcrypto.PubkeyToAddress(key.PublicKey),
	}

	vr := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}
	finalization := events.ProtocolMessageRelayed{ProtocolID: 100, VotingRoundID: uint32(v.ID()), TimestampS: next.StartS() + 45}
	vr.FTSO.Finalization = &finalization

	sig := signFinalization(t, otherKey, finalization)
	vr.FTSO.SubmitSignatures[entity.IdentityAddress] = []round.Submission[events.SubmitSignaturesPayload]{
		{Payload: events.SubmitSignaturesPayload{VotingRoundID: uint32(v.ID()), Signature: sig}, Tx: round.WTxData{TimestampS: next.StartS() + 50}},
	}

	msgs := EvaluateFTSO(vr, entity, NewBuilder())
	found := false
	for _, m := range msgs {
		if m.Text == "submit signatures signature doesn't match finalization" {
			found = true
		}
	}
	require.True(t, found)
}
