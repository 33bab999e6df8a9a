package round

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"flarewatch/fsp/epoch"
	"flarewatch/fsp/events"
)

func addrFor(s string) common.Address { return common.HexToAddress(s) }

func newTestStore(finalized uint64) *Store {
	return NewStore(epoch.NewFactory(epoch.Songbird), finalized)
}

func TestGetCreatesLazilyAndRejectsReorg(t *testing.T) {
	s := newTestStore(10)
	r, err := s.Get(11)
	require.NoError(t, err)
	require.Equal(t, uint64(11), r.VotingEpoch.ID())

	_, err = s.Get(10)
	require.Error(t, err)
	var reorg *ReorgDetected
	require.ErrorAs(t, err, &reorg)
}

func TestFinalizeByBothFinalizations(t *testing.T) {
	s := newTestStore(0)
	ve := epoch.NewFactory(epoch.Songbird).VotingEpochByID(5)

	require.NoError(t, s.SetFinalization(FTSO, events.ProtocolMessageRelayed{VotingRoundID: 5, ProtocolID: 100, TimestampS: ve.StartS()}))
	require.Empty(t, s.Finalize(ve.StartS()))

	require.NoError(t, s.SetFinalization(FDC, events.ProtocolMessageRelayed{VotingRoundID: 5, ProtocolID: 200, TimestampS: ve.StartS()}))
	ready := s.Finalize(ve.StartS())
	require.Len(t, ready, 1)
	require.Equal(t, uint64(5), ready[0].VotingEpoch.ID())
	require.Equal(t, uint64(5), s.Finalized())
}

func TestFinalizeByDeadlinePassed(t *testing.T) {
	s := newTestStore(0)
	f := epoch.NewFactory(epoch.Songbird)
	ve := f.VotingEpochByID(5)
	_, err := s.Get(5)
	require.NoError(t, err)

	notYet := ve.Next().EndS() - 1
	require.Empty(t, s.Finalize(notYet))

	ready := s.Finalize(ve.Next().EndS() + 1)
	require.Len(t, ready, 1)
}

func TestFinalizeAscendingOrderAndWatermark(t *testing.T) {
	s := newTestStore(0)
	f := epoch.NewFactory(epoch.Songbird)

	for _, id := range []uint64{7, 5, 6} {
		ve := f.VotingEpochByID(id)
		require.NoError(t, s.SetFinalization(FTSO, events.ProtocolMessageRelayed{VotingRoundID: uint32(id), ProtocolID: 100, TimestampS: ve.StartS()}))
		require.NoError(t, s.SetFinalization(FDC, events.ProtocolMessageRelayed{VotingRoundID: uint32(id), ProtocolID: 200, TimestampS: ve.StartS()}))
	}

	ready := s.Finalize(f.VotingEpochByID(7).StartS())
	require.Len(t, ready, 3)
	require.Equal(t, uint64(5), ready[0].VotingEpoch.ID())
	require.Equal(t, uint64(6), ready[1].VotingEpoch.ID())
	require.Equal(t, uint64(7), ready[2].VotingEpoch.ID())
	require.Equal(t, uint64(7), s.Finalized())
}

func TestInsertSubmit1RoutesByPayloadRound(t *testing.T) {
	s := newTestStore(0)
	identity := addrFor("0x1")
	require.NoError(t, s.InsertSubmit1(FTSO, identity, events.Submit1Payload{VotingRoundID: 9}, WTxData{}))

	r, err := s.Get(9)
	require.NoError(t, err)
	require.Len(t, r.FTSO.Submit1[identity], 1)
	require.Empty(t, r.FDC.Submit1[identity])
}

func TestStaleEntriesSilentlyEvicted(t *testing.T) {
	s := newTestStore(0)
	f := epoch.NewFactory(epoch.Songbird)
	_, err := s.Get(3)
	require.NoError(t, err)
	s.finalized = 3 // simulate a watermark advance that leaves round 3 stale
	require.Empty(t, s.Finalize(f.VotingEpochByID(3).StartS()))
	require.NotContains(t, s.rounds, uint64(3))
}
