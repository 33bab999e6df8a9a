// Package epoch implements the voting-round and reward-epoch timing value
// objects the rest of the core depends on: VotingEpoch and RewardEpoch are
// immutable, derived entirely from protocol constants plus a timestamp, and
// never consult wall-clock time themselves.
//
// Timing constants below follow the Songbird/Flare production profile
// recovered from original_source/configuration/configs/general.py (which
// imports py_flare_common's songbird timing module) and the 3.5-day reward
// epoch duration mentioned in the registration client comment surfaced in
// the retrieval pack (other_examples/.../registration_client.go).
package epoch

import "fmt"

// Config parameterises the voting/reward epoch arithmetic for one network.
// Open Question (a) from spec.md §9: avg block time is not used here (it
// only matters to the bootstrap boundary finder) but is carried alongside
// the epoch config since both are per-network constants resolved once at
// startup.
type Config struct {
	// FirstVotingRoundStartS is the Unix timestamp, in seconds, at which
	// voting round 0 began.
	FirstVotingRoundStartS int64
	// VotingEpochDurationS is the fixed length of a voting round.
	VotingEpochDurationS int64
	// RevealDeadlineOffsetS is how far into a voting round its
	// RevealDeadline falls. Reveals for round v are admissible until
	// v.Next().RevealDeadline(), i.e. v.Next().StartS() + RevealDeadlineOffsetS.
	RevealDeadlineOffsetS int64
	// VotingRoundsPerRewardEpoch is the nominal number of voting rounds in a
	// reward epoch; reward epoch 0 may begin at a non-zero voting round.
	VotingRoundsPerRewardEpoch uint64
	// FirstRewardEpochStartVotingRoundID is the voting round id at which
	// reward epoch 0 begins.
	FirstRewardEpochStartVotingRoundID uint64
}

// Songbird is the production timing profile for Songbird canary network and
// is reused, unmodified, for Flare, Coston, and Coston2: all four networks
// in scope share one voting-round cadence (spec.md §1).
var Songbird = Config{
	FirstVotingRoundStartS:              1658429955,
	VotingEpochDurationS:                90,
	RevealDeadlineOffsetS:               45,
	VotingRoundsPerRewardEpoch:          3360, // 3360 * 90s = 302400s = 3.5 days
	FirstRewardEpochStartVotingRoundID:  0,
}

// VotingEpoch is an immutable voting-round identifier plus its derived
// boundaries.
type VotingEpoch struct {
	id  uint64
	cfg Config
}

// RewardEpoch is an immutable reward-epoch identifier plus its derived
// boundaries, expressed in the same voting-round cadence.
type RewardEpoch struct {
	id  uint64
	cfg Config
}

// Factory derives VotingEpoch and RewardEpoch values from timestamps or ids
// for one network's Config.
type Factory struct {
	cfg Config
}

// NewFactory builds a Factory over the given Config.
func NewFactory(cfg Config) Factory {
	return Factory{cfg: cfg}
}

// VotingEpochByID returns the voting epoch with the given id.
func (f Factory) VotingEpochByID(id uint64) VotingEpoch {
	return VotingEpoch{id: id, cfg: f.cfg}
}

// VotingEpochFromTimestamp returns the voting epoch containing ts.
func (f Factory) VotingEpochFromTimestamp(ts int64) VotingEpoch {
	if ts < f.cfg.FirstVotingRoundStartS {
		return VotingEpoch{id: 0, cfg: f.cfg}
	}
	elapsed := ts - f.cfg.FirstVotingRoundStartS
	id := uint64(elapsed / f.cfg.VotingEpochDurationS)
	return VotingEpoch{id: id, cfg: f.cfg}
}

// RewardEpochByID returns the reward epoch with the given id.
func (f Factory) RewardEpochByID(id uint64) RewardEpoch {
	return RewardEpoch{id: id, cfg: f.cfg}
}

// RewardEpochFromTimestamp returns the reward epoch containing ts.
func (f Factory) RewardEpochFromTimestamp(ts int64) RewardEpoch {
	ve := f.VotingEpochFromTimestamp(ts)
	return f.RewardEpochForVotingRound(ve.id)
}

// RewardEpochForVotingRound returns the reward epoch that votingRoundID
// belongs to, assuming the nominal (non-extended) cadence. The observer
// loop corrects for extensions by rolling the policy on
// SigningPolicyInitialized.StartVotingRoundID rather than on this estimate
// (spec.md §4.5 step 2).
func (f Factory) RewardEpochForVotingRound(votingRoundID uint64) RewardEpoch {
	if votingRoundID < f.cfg.FirstRewardEpochStartVotingRoundID {
		return RewardEpoch{id: 0, cfg: f.cfg}
	}
	offset := votingRoundID - f.cfg.FirstRewardEpochStartVotingRoundID
	id := offset / f.cfg.VotingRoundsPerRewardEpoch
	return RewardEpoch{id: id, cfg: f.cfg}
}

// ID returns the voting round id.
func (v VotingEpoch) ID() uint64 { return v.id }

// StartS is the Unix timestamp, in seconds, at which the round begins.
func (v VotingEpoch) StartS() int64 {
	return v.cfg.FirstVotingRoundStartS + int64(v.id)*v.cfg.VotingEpochDurationS
}

// EndS is the Unix timestamp at which the round ends (equal to
// Next().StartS()).
func (v VotingEpoch) EndS() int64 {
	return v.StartS() + v.cfg.VotingEpochDurationS
}

// RevealDeadline is the Unix timestamp RevealDeadlineOffsetS seconds into
// this round, after which reveals (submit2) for the previous round are no
// longer admissible.
func (v VotingEpoch) RevealDeadline() int64 {
	return v.StartS() + v.cfg.RevealDeadlineOffsetS
}

// Next returns the following voting round.
func (v VotingEpoch) Next() VotingEpoch {
	return VotingEpoch{id: v.id + 1, cfg: v.cfg}
}

// Previous returns the preceding voting round. Calling Previous on round 0
// returns round 0 (there is no round before genesis).
func (v VotingEpoch) Previous() VotingEpoch {
	if v.id == 0 {
		return v
	}
	return VotingEpoch{id: v.id - 1, cfg: v.cfg}
}

func (v VotingEpoch) String() string {
	return fmt.Sprintf("voting_epoch(%d)", v.id)
}

// ID returns the reward epoch id.
func (r RewardEpoch) ID() uint64 { return r.id }

// StartVotingRoundID is the voting round id at which this reward epoch
// begins under the nominal (non-extended) cadence.
func (r RewardEpoch) StartVotingRoundID() uint64 {
	return r.cfg.FirstRewardEpochStartVotingRoundID + r.id*r.cfg.VotingRoundsPerRewardEpoch
}

// StartS is the Unix timestamp at which this reward epoch nominally begins.
func (r RewardEpoch) StartS() int64 {
	return VotingEpoch{id: r.StartVotingRoundID(), cfg: r.cfg}.StartS()
}

// EndS is the Unix timestamp at which this reward epoch nominally ends.
func (r RewardEpoch) EndS() int64 {
	return RewardEpoch{id: r.id + 1, cfg: r.cfg}.StartS()
}

// RevealDeadline mirrors VotingEpoch.RevealDeadline for API symmetry
// (spec.md §3 describes both value objects with the same accessor shape);
// reward epochs have no commit/reveal phase of their own, so this is simply
// the epoch boundary.
func (r RewardEpoch) RevealDeadline() int64 {
	return r.EndS()
}

// Next returns the following reward epoch.
func (r RewardEpoch) Next() RewardEpoch {
	return RewardEpoch{id: r.id + 1, cfg: r.cfg}
}

// Previous returns the preceding reward epoch. Calling Previous on epoch 0
// returns epoch 0.
func (r RewardEpoch) Previous() RewardEpoch {
	if r.id == 0 {
		return r
	}
	return RewardEpoch{id: r.id - 1, cfg: r.cfg}
}

func (r RewardEpoch) String() string {
	return fmt.Sprintf("reward_epoch(%d)", r.id)
}
