package validate

import (
	"flarewatch/fsp/policy"
	"flarewatch/fsp/round"
)

// EvaluateFDC runs the protocol-200 validation predicates against a judged
// voting round for the target entity. mb should already carry the round's
// network/round/protocol context (protocol 200). Unlike FTSO, submit1's
// presence is never validated: FDC does not require a commit.
func EvaluateFDC(vr *round.VotingRound, entity *policy.Entity, mb *Builder) []Message {
	v := vr.VotingEpoch
	next := v.Next()
	bucket := vr.FDC

	_, hasSubmit2 := selectLatest(bucket.Submit2[entity.IdentityAddress], next.StartS(), next.RevealDeadline())

	grace := graceDeadline(next, bucket.Finalization)
	ss, hasSS := selectLatest(bucket.SubmitSignatures[entity.IdentityAddress], next.RevealDeadline(), grace)
	ssd, hasSSD := selectLatest(bucket.SubmitSignatures[entity.IdentityAddress], next.RevealDeadline(), next.EndS())

	var out []Message

	if !hasSubmit2 {
		out = append(out, mb.Build(LevelError, "no submit2 transaction"))
	}
	if hasSubmit2 && !hasSSD {
		out = append(out, mb.Build(LevelCritical, "no submit signatures transaction, causing reveal offence"))
	}
	if hasSubmit2 && hasSSD && !hasSS {
		out = append(out, mb.Build(LevelError, "no submit signatures transaction during grace period, causing loss of rewards"))
	}
	if !hasSubmit2 && !hasSS {
		out = append(out, mb.Build(LevelError, "no submit signatures transaction"))
	}
	if bucket.Finalization != nil && hasSS {
		ok, err := signatureMatchesFinalization(*bucket.Finalization, ss, entity)
		if err != nil || !ok {
			out = append(out, mb.Build(LevelError, "submit signatures signature doesn't match finalization"))
		}
	}

	return out
}
