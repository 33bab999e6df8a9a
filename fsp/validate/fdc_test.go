package validate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"flarewatch/fsp/events"
	"flarewatch/fsp/policy"
	"flarewatch/fsp/round"
)

func TestFDCLateSignaturePastGrace(t *testing.T) {
	f := testFactory()
	v := f.VotingEpochByID(200)
	next := v.Next()
	entity := &policy.Entity{IdentityAddress: common.HexToAddress("0xAA")}

	vr := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}
	vr.FDC.Submit2[entity.IdentityAddress] = []round.Submission[events.Submit2Payload]{
		{Payload: events.Submit2Payload{VotingRoundID: uint32(v.ID())}, Tx: round.WTxData{TimestampS: next.StartS() + 5}},
	}
	vr.FDC.SubmitSignatures[entity.IdentityAddress] = []round.Submission[events.SubmitSignaturesPayload]{
		{Payload: events.SubmitSignaturesPayload{VotingRoundID: uint32(v.ID())}, Tx: round.WTxData{TimestampS: next.EndS() - 1}},
	}

	msgs := EvaluateFDC(vr, entity, NewBuilder())
	found := false
	for _, m := range msgs {
		if m.Level == LevelError && m.Text == "no submit signatures transaction during grace period, causing loss of rewards" {
			found = true
		}
	}
	require.True(t, found, "expected grace-period loss-of-rewards message, got %+v", msgs)
}

func TestFDCMissingSubmit2AndSignatures(t *testing.T) {
	f := testFactory()
	v := f.VotingEpochByID(201)
	entity := &policy.Entity{IdentityAddress: common.HexToAddress("0xAA")}
	vr := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}

	msgs := EvaluateFDC(vr, entity, NewBuilder())
	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	require.Contains(t, texts, "no submit2 transaction")
	require.Contains(t, texts, "no submit signatures transaction")
}

func TestFDCSubmit2PresentNoSubmitSignatures(t *testing.T) {
	f := testFactory()
	v := f.VotingEpochByID(202)
	next := v.Next()
	entity := &policy.Entity{IdentityAddress: common.HexToAddress("0xAA")}
	vr := &round.VotingRound{VotingEpoch: v, FTSO: newFTSOBucket(), FDC: newFTSOBucket()}
	vr.FDC.Submit2[entity.IdentityAddress] = []round.Submission[events.Submit2Payload]{
		{Payload: events.Submit2Payload{VotingRoundID: uint32(v.ID())}, Tx: round.WTxData{TimestampS: next.StartS() + 5}},
	}

	msgs := EvaluateFDC(vr, entity, NewBuilder())
	found := false
	for _, m := range msgs {
		if m.Level == LevelCritical && m.Text == "no submit signatures transaction, causing reveal offence" {
			found = true
		}
	}
	require.True(t, found)
}
