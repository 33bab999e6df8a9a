// Package round implements the voting-round store: a keyed map of
// per-protocol submission buckets plus at most one finalization per
// protocol, and the finalize operation that atomically extracts every round
// now eligible for judgement.
package round

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"flarewatch/fsp/epoch"
	"flarewatch/fsp/events"
)

// Protocol distinguishes which of the two monitored protocols a submission
// or finalization belongs to.
type Protocol int

const (
	FTSO Protocol = 100
	FDC  Protocol = 200
)

func (p Protocol) String() string {
	if p == FTSO {
		return "ftso"
	}
	return "fdc"
}

// WTxData is the subset of a transaction's chain-observed data the
// validation engine needs: its identity, position, and the block timestamp
// that all deadline logic is measured against (never wall-clock).
type WTxData struct {
	Hash             common.Hash
	From             common.Address
	To               common.Address
	Input            []byte
	BlockNumber      uint64
	TransactionIndex uint
	Value            *big.Int
	TimestampS       int64
}

// Submission pairs a decoded payload with the transaction it came from.
type Submission[T any] struct {
	Payload T
	Tx      WTxData
}

// ProtocolBucket holds one protocol's submission state for one voting
// round: insertion-ordered submission lists keyed by identity address, and
// at most one finalization.
type ProtocolBucket struct {
	Submit1          map[common.Address][]Submission[events.Submit1Payload]
	Submit2          map[common.Address][]Submission[events.Submit2Payload]
	SubmitSignatures map[common.Address][]Submission[events.SubmitSignaturesPayload]
	Finalization     *events.ProtocolMessageRelayed
}

func newProtocolBucket() *ProtocolBucket {
	return &ProtocolBucket{
		Submit1:          make(map[common.Address][]Submission[events.Submit1Payload]),
		Submit2:          make(map[common.Address][]Submission[events.Submit2Payload]),
		SubmitSignatures: make(map[common.Address][]Submission[events.SubmitSignaturesPayload]),
	}
}

// VotingRound aggregates both protocols' state for one voting epoch.
type VotingRound struct {
	VotingEpoch epoch.VotingEpoch
	FTSO        *ProtocolBucket
	FDC         *ProtocolBucket
}

func newVotingRound(ve epoch.VotingEpoch) *VotingRound {
	return &VotingRound{VotingEpoch: ve, FTSO: newProtocolBucket(), FDC: newProtocolBucket()}
}

func (r *VotingRound) bucket(p Protocol) *ProtocolBucket {
	if p == FTSO {
		return r.FTSO
	}
	return r.FDC
}

// ReorgDetected is returned when a voting round at or below the store's
// finalized watermark is accessed again — it should never legitimately
// reappear once finalized, so this indicates a chain reorganization.
type ReorgDetected struct {
	VotingRoundID uint64
	Finalized     uint64
}

func (e *ReorgDetected) Error() string {
	return fmt.Sprintf("reorg detected: voting round %d at or below finalized watermark %d", e.VotingRoundID, e.Finalized)
}

// Store is a keyed map of VotingRound aggregates plus the monotonic
// finalized watermark.
type Store struct {
	epochs    epoch.Factory
	finalized uint64
	rounds    map[uint64]*VotingRound
}

// NewStore creates a store with the given initial finalized watermark
// (typically voting_epoch.previous.id at alignment time).
func NewStore(epochs epoch.Factory, finalized uint64) *Store {
	return &Store{epochs: epochs, finalized: finalized, rounds: make(map[uint64]*VotingRound)}
}

// Finalized returns the current finalized watermark.
func (s *Store) Finalized() uint64 { return s.finalized }

// Get returns the aggregate for votingRoundID, creating it lazily. Fails
// with ReorgDetected if votingRoundID is at or below the finalized
// watermark.
func (s *Store) Get(votingRoundID uint64) (*VotingRound, error) {
	if votingRoundID <= s.finalized {
		return nil, &ReorgDetected{VotingRoundID: votingRoundID, Finalized: s.finalized}
	}
	r, ok := s.rounds[votingRoundID]
	if !ok {
		r = newVotingRound(s.epochs.VotingEpochByID(votingRoundID))
		s.rounds[votingRoundID] = r
	}
	return r, nil
}

// InsertSubmit1 appends a submit1 record to the given protocol's
// per-identity bucket for the round the payload names.
func (s *Store) InsertSubmit1(p Protocol, identity common.Address, payload events.Submit1Payload, tx WTxData) error {
	r, err := s.Get(uint64(payload.VotingRoundID))
	if err != nil {
		return err
	}
	b := r.bucket(p)
	b.Submit1[identity] = append(b.Submit1[identity], Submission[events.Submit1Payload]{Payload: payload, Tx: tx})
	return nil
}

// InsertSubmit2 appends a submit2 record to the given protocol's
// per-identity bucket for the round the payload names.
func (s *Store) InsertSubmit2(p Protocol, identity common.Address, payload events.Submit2Payload, tx WTxData) error {
	r, err := s.Get(uint64(payload.VotingRoundID))
	if err != nil {
		return err
	}
	b := r.bucket(p)
	b.Submit2[identity] = append(b.Submit2[identity], Submission[events.Submit2Payload]{Payload: payload, Tx: tx})
	return nil
}

// InsertSubmitSignatures appends a submitSignatures record to the given
// protocol's per-identity bucket for the round the payload names.
func (s *Store) InsertSubmitSignatures(p Protocol, identity common.Address, payload events.SubmitSignaturesPayload, tx WTxData) error {
	r, err := s.Get(uint64(payload.VotingRoundID))
	if err != nil {
		return err
	}
	b := r.bucket(p)
	b.SubmitSignatures[identity] = append(b.SubmitSignatures[identity], Submission[events.SubmitSignaturesPayload]{Payload: payload, Tx: tx})
	return nil
}

// SetFinalization records the given protocol's finalization for the round
// the event names.
func (s *Store) SetFinalization(p Protocol, e events.ProtocolMessageRelayed) error {
	r, err := s.Get(uint64(e.VotingRoundID))
	if err != nil {
		return err
	}
	ev := e
	r.bucket(p).Finalization = &ev
	return nil
}

func (r *VotingRound) judgeable(epochs epoch.Factory, blockTimestampS int64) bool {
	if r.FTSO.Finalization != nil && r.FDC.Finalization != nil {
		return true
	}
	next := r.VotingEpoch.Next()
	return next.EndS() < blockTimestampS
}

// Finalize returns, in ascending voting_round id order, every round that is
// now judgeable, removes them from the store, and advances the finalized
// watermark to the max id removed. Entries at or below the current
// watermark are silently evicted without being returned.
func (s *Store) Finalize(blockTimestampS int64) []*VotingRound {
	var ready []uint64
	for id, r := range s.rounds {
		if id <= s.finalized {
			delete(s.rounds, id)
			continue
		}
		if r.judgeable(s.epochs, blockTimestampS) {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	out := make([]*VotingRound, 0, len(ready))
	for _, id := range ready {
		out = append(out, s.rounds[id])
		delete(s.rounds, id)
		if id > s.finalized {
			s.finalized = id
		}
	}
	return out
}
