package epoch

import "testing"

func TestVotingEpochBoundaries(t *testing.T) {
	f := NewFactory(Songbird)
	v := f.VotingEpochByID(10)

	wantStart := Songbird.FirstVotingRoundStartS + 10*Songbird.VotingEpochDurationS
	if v.StartS() != wantStart {
		t.Fatalf("StartS = %d, want %d", v.StartS(), wantStart)
	}
	if v.EndS() != v.Next().StartS() {
		t.Fatalf("EndS should equal Next().StartS()")
	}
	if v.RevealDeadline() != v.StartS()+Songbird.RevealDeadlineOffsetS {
		t.Fatalf("RevealDeadline mismatch")
	}
}

func TestVotingEpochFromTimestampRoundTrip(t *testing.T) {
	f := NewFactory(Songbird)
	v := f.VotingEpochByID(42)

	for _, ts := range []int64{v.StartS(), v.StartS() + 1, v.EndS() - 1} {
		got := f.VotingEpochFromTimestamp(ts)
		if got.ID() != v.ID() {
			t.Fatalf("FromTimestamp(%d).ID() = %d, want %d", ts, got.ID(), v.ID())
		}
	}
	if got := f.VotingEpochFromTimestamp(v.EndS()); got.ID() != v.ID()+1 {
		t.Fatalf("FromTimestamp(EndS).ID() = %d, want %d", got.ID(), v.ID()+1)
	}
}

func TestVotingEpochPreviousClampsAtZero(t *testing.T) {
	f := NewFactory(Songbird)
	v := f.VotingEpochByID(0)
	if v.Previous().ID() != 0 {
		t.Fatalf("Previous of round 0 should stay at 0, got %d", v.Previous().ID())
	}
}

func TestRewardEpochForVotingRound(t *testing.T) {
	f := NewFactory(Songbird)
	r0 := f.RewardEpochForVotingRound(0)
	if r0.ID() != 0 {
		t.Fatalf("reward epoch for round 0 = %d, want 0", r0.ID())
	}

	boundary := Songbird.VotingRoundsPerRewardEpoch
	rBoundary := f.RewardEpochForVotingRound(boundary)
	if rBoundary.ID() != 1 {
		t.Fatalf("reward epoch for round %d = %d, want 1", boundary, rBoundary.ID())
	}
	rJustBefore := f.RewardEpochForVotingRound(boundary - 1)
	if rJustBefore.ID() != 0 {
		t.Fatalf("reward epoch for round %d = %d, want 0", boundary-1, rJustBefore.ID())
	}
}

func TestRewardEpochNextPreviousSymmetry(t *testing.T) {
	f := NewFactory(Songbird)
	r := f.RewardEpochByID(3)
	if r.Next().Previous().ID() != r.ID() {
		t.Fatalf("Next().Previous() should round-trip")
	}
	if r.StartVotingRoundID()+Songbird.VotingRoundsPerRewardEpoch != r.Next().StartVotingRoundID() {
		t.Fatalf("reward epoch length mismatch")
	}
}
