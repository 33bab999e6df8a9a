package validate

import (
	"fmt"
	"strconv"
	"strings"

	"flarewatch/fsp/epoch"
	"flarewatch/fsp/events"
	"flarewatch/fsp/policy"
	"flarewatch/fsp/round"
	"flarewatch/sign"
)

// EvaluateFTSO runs the protocol-100 validation predicates against a judged
// voting round for the target entity. mb should already carry the round's
// network/round/protocol context (protocol 100).
func EvaluateFTSO(vr *round.VotingRound, entity *policy.Entity, mb *Builder) []Message {
	v := vr.VotingEpoch
	next := v.Next()
	bucket := vr.FTSO

	submit1, hasSubmit1 := selectLatest(bucket.Submit1[entity.IdentityAddress], v.StartS(), v.EndS())
	submit2, hasSubmit2 := selectLatest(bucket.Submit2[entity.IdentityAddress], next.StartS(), next.RevealDeadline())

	grace := graceDeadline(next, bucket.Finalization)
	submitSignatures, hasSubmitSignatures := selectLatest(bucket.SubmitSignatures[entity.IdentityAddress], next.RevealDeadline(), grace)

	var out []Message

	if !hasSubmit1 {
		out = append(out, mb.Build(LevelInfo, "no submit1 transaction"))
	}
	if hasSubmit1 && !hasSubmit2 {
		out = append(out, mb.Build(LevelCritical, "no submit2 transaction, causing reveal offence"))
	}
	if hasSubmit2 {
		if empty := submit2.Payload.EmptyIndices(); len(empty) > 0 {
			out = append(out, mb.Build(LevelWarning, fmt.Sprintf("submit 2 had 'None' on indices %s", joinInts(empty))))
		}
	}
	if hasSubmit1 && hasSubmit2 {
		commitHash := sign.CommitHash(entity.SubmitAddress, uint32(v.ID()), submit2.Payload.Rnd, submit2.Payload.FeedBytes())
		if commitHash != submit1.Payload.CommitHash {
			out = append(out, mb.Build(LevelCritical, "commit hash and reveal didn't match, causing reveal offence"))
		}
	}
	if !hasSubmitSignatures {
		out = append(out, mb.Build(LevelError, "no submit signatures transaction"))
	}
	if bucket.Finalization != nil && hasSubmitSignatures {
		ok, err := signatureMatchesFinalization(*bucket.Finalization, submitSignatures, entity)
		if err != nil || !ok {
			out = append(out, mb.Build(LevelError, "submit signatures signature doesn't match finalization"))
		}
	}

	return out
}

// graceDeadline implements grace = max(v.next.start_s + 56, finalization.timestamp + 1, 0),
// the half-open upper bound for the submit-signatures slot — the +56
// reading is the intended half-open upper bound among two drafts that
// disagreed on this constant, per the design notes.
func graceDeadline(next epoch.VotingEpoch, finalization *events.ProtocolMessageRelayed) int64 {
	grace := next.StartS() + 56
	if finalization != nil && finalization.TimestampS+1 > grace {
		grace = finalization.TimestampS + 1
	}
	if grace < 0 {
		grace = 0
	}
	return grace
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
