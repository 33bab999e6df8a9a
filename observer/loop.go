package observer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"flarewatch/chainio"
	"flarewatch/fsp/epoch"
	"flarewatch/fsp/events"
	"flarewatch/fsp/policy"
	"flarewatch/fsp/round"
	"flarewatch/fsp/validate"
	"flarewatch/notify"
	"flarewatch/observability/metrics"
)

// idlePollInterval is how long the steady-state loop sleeps when it has
// caught up to the chain head (spec.md §4.5 "Polling cadence").
const idlePollInterval = 2 * time.Second

// bootstrapWindowStartOffsetS and bootstrapWindowEndOffsetS bracket the
// voter-registration window the bootstrap scan looks for
// SigningPolicyInitialized in, relative to a reward epoch's nominal start.
const (
	bootstrapWindowStartOffsetS = 9000
	bootstrapWindowEndOffsetS   = 3600
)

// ContractAddresses names the five contracts the loop watches. Resolving
// these (and the ABIs needed to decode their logs) from a chain manifest is
// an external collaborator's job per spec.md §6 — this repo only consumes
// the addresses and a decoder built against them.
type ContractAddresses struct {
	VoterRegistry          common.Address
	FlareSystemsManager    common.Address
	FlareSystemsCalculator common.Address
	Relay                  common.Address
	Submission             common.Address
}

// monitoredLogAddresses returns the four contracts whose logs carry
// signing-policy and finalization events (the Submission contract is only
// ever matched against a transaction's `to`, never filtered by log).
func (a ContractAddresses) monitoredLogAddresses() []common.Address {
	return []common.Address{a.Relay, a.VoterRegistry, a.FlareSystemsManager, a.FlareSystemsCalculator}
}

// LogDecoder resolves one raw chain log into the typed event it represents.
// Matching topics[0] against a contract's ABI to recover the event name,
// and ABI-decoding the remaining topics/data into named fields, is the
// out-of-scope "contract ABI loading" collaborator named in spec.md §1; the
// loop only ever sees the result.
type LogDecoder interface {
	DecodeLog(log chainio.Log, blockTimestampS int64) (events.Kind, any, error)
}

// Config parameterises one Loop instance: everything specific to a single
// network and a single target voter.
type Config struct {
	NetworkName    string
	TargetIdentity common.Address
	Epochs         epoch.Factory
	Addresses      ContractAddresses
	// AvgBlockTimeS seeds the boundary finder's initial guess (spec.md §4.6);
	// it is not used anywhere else in the loop.
	AvgBlockTimeS int64
}

// Loop drives the bootstrap/align/steady-state cycle described in
// spec.md §4.5: a single sequential consumer that reconstructs signing
// policies and voting rounds from chain data and emits validation messages
// for one target entity.
type Loop struct {
	client  chainio.RPCClient
	decoder LogDecoder
	sink    notify.Sink
	log     *slog.Logger
	cfg     Config

	mb *validate.Builder

	policy      *policy.SigningPolicy
	pending     *policy.Builder
	store       *round.Store
	blockNumber uint64
}

// NewLoop constructs a Loop. None of its dependencies are contacted until
// Run is called.
func NewLoop(client chainio.RPCClient, decoder LogDecoder, sink notify.Sink, cfg Config, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		client:  client,
		decoder: decoder,
		sink:    sink,
		log:     log,
		cfg:     cfg,
		mb:      validate.NewBuilder().WithNetwork(cfg.NetworkName),
	}
}

// Run bootstraps the signing policy and voting-round store, aligns to the
// current voting epoch, and then runs the steady-state loop until ctx is
// cancelled or an RPC call fails. Per spec.md §4.5/§5, RPC failures are not
// retried internally: they bubble out so a supervisor can restart the
// process.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.bootstrap(ctx); err != nil {
		return fmt.Errorf("observer: bootstrap: %w", err)
	}
	if err := l.align(ctx); err != nil {
		return fmt.Errorf("observer: align: %w", err)
	}
	l.announceStartup(ctx)
	return l.steadyState(ctx)
}

// bootstrap locates the current reward epoch's voter-registration window
// and builds the signing policy in effect for it (spec.md §4.5 "Bootstrap").
func (l *Loop) bootstrap(ctx context.Context) error {
	latestNum, err := l.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	latest, err := l.client.BlockByNumber(ctx, latestNum, false)
	if err != nil {
		return fmt.Errorf("block %d: %w", latestNum, err)
	}

	rewardEpoch := l.cfg.Epochs.RewardEpochFromTimestamp(latest.TimestampS)
	windowStartS := rewardEpoch.StartS() - bootstrapWindowStartOffsetS
	windowEndS := rewardEpoch.StartS() - bootstrapWindowEndOffsetS

	lower, err := FindBoundary(ctx, l.client, latestNum, latest.TimestampS, windowStartS, l.cfg.AvgBlockTimeS)
	if err != nil {
		return fmt.Errorf("locate registration window start: %w", err)
	}
	upper, err := FindBoundary(ctx, l.client, latestNum, latest.TimestampS, windowEndS, l.cfg.AvgBlockTimeS)
	if err != nil {
		return fmt.Errorf("locate registration window end: %w", err)
	}

	builder := policy.NewBuilder()
	builder.ForEpoch(rewardEpoch.ID())

	scanned := lower
	for bn := lower; bn <= upper; bn++ {
		blk, err := l.client.BlockByNumber(ctx, bn, false)
		if err != nil {
			return fmt.Errorf("block %d: %w", bn, err)
		}
		scanned = bn
		stop, err := l.feedSigningPolicyLogs(ctx, builder, bn, blk.TimestampS)
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	sp, err := builder.Build(l.cfg.Epochs)
	if err != nil {
		return fmt.Errorf("build signing policy for reward epoch %d (scanned blocks %d..%d): %w", rewardEpoch.ID(), lower, scanned, err)
	}

	l.policy = sp
	l.pending = policy.NewBuilder()
	l.pending.ForEpoch(sp.RewardEpoch.Next().ID())
	l.blockNumber = scanned + 1

	l.log.Info("signing policy bootstrapped",
		slog.Uint64("reward_epoch_id", sp.RewardEpoch.ID()),
		slog.Int("voters", len(sp.Entities)),
		slog.Uint64("scanned_from", lower),
		slog.Uint64("scanned_to", scanned),
	)

	metrics.Observer().SetRewardEpoch(sp.RewardEpoch.ID())
	l.setTargetEntityMetrics()

	return nil
}

// feedSigningPolicyLogs fetches block bn's logs for the monitored contract
// addresses and routes signing-policy events into builder. It reports
// whether the bootstrap scan can stop early because
// SigningPolicyInitialized has now been observed.
func (l *Loop) feedSigningPolicyLogs(ctx context.Context, builder *policy.Builder, bn uint64, blockTimestampS int64) (bool, error) {
	logs, err := l.client.FilterLogs(ctx, l.cfg.Addresses.monitoredLogAddresses(), bn, bn)
	if err != nil {
		return false, fmt.Errorf("filter logs %d: %w", bn, err)
	}
	sawSigningPolicyInitialized := false
	for _, lg := range logs {
		kind, ev, err := l.decoder.DecodeLog(lg, blockTimestampS)
		if err != nil {
			l.log.Warn("failed to decode log", slog.String("error", err.Error()), slog.Uint64("block", bn))
			continue
		}
		if kind == events.KindSigningPolicyInitialized {
			sawSigningPolicyInitialized = true
		}
		if err := l.addSigningPolicyEvent(builder, kind, ev); err != nil {
			l.log.Error("signing policy builder rejected event",
				slog.String("error", err.Error()), slog.String("kind", kind.String()))
		}
	}
	return sawSigningPolicyInitialized, nil
}

// addSigningPolicyEvent dispatches one decoded event to the builder's
// matching Add method, ignoring events the builder doesn't track
// (ProtocolMessageRelayed is routed elsewhere, per step 3 of §4.5).
func (l *Loop) addSigningPolicyEvent(builder *policy.Builder, kind events.Kind, ev any) error {
	switch kind {
	case events.KindRandomAcquisitionStarted:
		return builder.AddRandomAcquisitionStarted(ev.(events.RandomAcquisitionStarted))
	case events.KindVotePowerBlockSelected:
		return builder.AddVotePowerBlockSelected(ev.(events.VotePowerBlockSelected))
	case events.KindSigningPolicyInitialized:
		return builder.AddSigningPolicyInitialized(ev.(events.SigningPolicyInitialized))
	case events.KindVoterRegistered:
		return builder.AddVoterRegistered(ev.(events.VoterRegistered))
	case events.KindVoterRegistrationInfo:
		return builder.AddVoterRegistrationInfo(ev.(events.VoterRegistrationInfo))
	case events.KindVoterRemoved:
		return builder.AddVoterRemoved(ev.(events.VoterRemoved))
	default:
		return nil
	}
}

// align advances block-by-block until a block's timestamp falls strictly
// within the voting epoch following the one bootstrap left off in, then
// adopts that as the starting voting epoch and instantiates the voting
// round store (spec.md §4.5 "Align").
func (l *Loop) align(ctx context.Context) error {
	latestNum, err := l.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	blk, err := l.client.BlockByNumber(ctx, l.blockNumber, false)
	if err != nil {
		return fmt.Errorf("block %d: %w", l.blockNumber, err)
	}
	anchor := l.cfg.Epochs.VotingEpochFromTimestamp(blk.TimestampS)
	target := anchor.Next()

	bn := l.blockNumber
	for {
		if bn > latestNum {
			latestNum, err = l.client.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("block number: %w", err)
			}
			if bn > latestNum {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(idlePollInterval):
				}
				continue
			}
		}
		blk, err = l.client.BlockByNumber(ctx, bn, false)
		if err != nil {
			return fmt.Errorf("block %d: %w", bn, err)
		}
		if blk.TimestampS >= target.StartS() {
			break
		}
		bn++
	}

	votingEpoch := l.cfg.Epochs.VotingEpochFromTimestamp(blk.TimestampS)
	l.store = round.NewStore(l.cfg.Epochs, votingEpoch.Previous().ID())
	l.blockNumber = bn

	l.log.Info("aligned to voting epoch",
		slog.Uint64("voting_epoch_id", votingEpoch.ID()),
		slog.Uint64("block", bn),
	)
	metrics.Observer().SetVotingEpoch(votingEpoch.ID())
	return nil
}

// announceStartup emits the one-time INFO message carried over from the
// original's startup Discord announcement (SPEC_FULL.md §5).
func (l *Loop) announceStartup(ctx context.Context) {
	text := fmt.Sprintf(
		"flarewatch observer started\nchain: %s\nidentity address: %s\nreward epoch: %d\nblock: %d",
		l.cfg.NetworkName, l.cfg.TargetIdentity.Hex(), l.policy.RewardEpoch.ID(), l.blockNumber,
	)
	msg := l.mb.Build(validate.LevelInfo, text)
	l.emit(ctx, "", msg)
}

// steadyState implements spec.md §4.5's per-tick loop: poll latest, walk
// every new block, route its logs and transactions, and finalize any
// rounds that have become judgeable.
func (l *Loop) steadyState(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		latest, err := l.client.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("block number: %w", err)
		}
		if l.blockNumber >= latest {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idlePollInterval):
			}
			continue
		}

		for bn := l.blockNumber; bn < latest; bn++ {
			if err := l.processBlock(ctx, bn); err != nil {
				return fmt.Errorf("block %d: %w", bn, err)
			}
			l.blockNumber = bn + 1
		}
	}
}

// processBlock runs steps 1-5 of spec.md §4.5's steady-state loop for one
// block.
func (l *Loop) processBlock(ctx context.Context, bn uint64) error {
	blk, err := l.client.BlockByNumber(ctx, bn, true)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	votingEpoch := l.cfg.Epochs.VotingEpochFromTimestamp(blk.TimestampS)
	metrics.Observer().SetVotingEpoch(votingEpoch.ID())

	l.rolloverPendingPolicy(votingEpoch)

	if err := l.routeLogs(ctx, bn, blk.TimestampS); err != nil {
		return err
	}
	l.routeTransactions(blk)

	for _, vr := range l.store.Finalize(blk.TimestampS) {
		l.judgeRound(ctx, vr)
	}
	return nil
}

// rolloverPendingPolicy finalises the pending builder and swaps it in as
// the active signing policy once its SigningPolicyInitialized event names
// the voting round the loop has now reached (spec.md §4.5 step 2).
func (l *Loop) rolloverPendingPolicy(votingEpoch epoch.VotingEpoch) {
	if l.pending == nil || l.pending.State() != policy.StateCollecting {
		return
	}
	ready, ok := l.pending.PendingStartVotingRoundID()
	if !ok || ready != votingEpoch.ID() {
		return
	}

	sp, err := l.pending.Build(l.cfg.Epochs)
	if err != nil {
		l.log.Error("failed to finalise pending signing policy, keeping previous policy",
			slog.String("error", err.Error()))
		return
	}

	l.policy = sp
	l.pending = policy.NewBuilder()
	l.pending.ForEpoch(sp.RewardEpoch.Next().ID())

	l.log.Info("rolled signing policy", slog.Uint64("reward_epoch_id", sp.RewardEpoch.ID()))
	metrics.Observer().SetRewardEpoch(sp.RewardEpoch.ID())
	l.setTargetEntityMetrics()
}

// routeLogs fetches block bn's logs for the monitored contracts and routes
// them either to the pending signing-policy builder or to the voting-round
// store's finalization slots (spec.md §4.5 step 3).
func (l *Loop) routeLogs(ctx context.Context, bn uint64, blockTimestampS int64) error {
	logs, err := l.client.FilterLogs(ctx, l.cfg.Addresses.monitoredLogAddresses(), bn, bn)
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}
	for _, lg := range logs {
		kind, ev, err := l.decoder.DecodeLog(lg, blockTimestampS)
		if err != nil {
			l.log.Warn("failed to decode log", slog.String("error", err.Error()), slog.Uint64("block", bn))
			continue
		}
		if kind == events.KindProtocolMessageRelayed {
			pmr := ev.(events.ProtocolMessageRelayed)
			p := round.FTSO
			if pmr.ProtocolID == uint8(round.FDC) {
				p = round.FDC
			}
			if err := l.store.SetFinalization(p, pmr); err != nil {
				l.log.Error("reorg detected while recording finalization", slog.String("error", err.Error()))
			}
			continue
		}
		if err := l.addSigningPolicyEvent(l.pending, kind, ev); err != nil {
			l.log.Error("signing policy builder rejected event",
				slog.String("error", err.Error()), slog.String("kind", kind.String()))
		}
	}
	return nil
}

// routeTransactions scans block b's full transactions for submit1/submit2/
// submitSignatures calls to the Submission contract (spec.md §4.5 step 4).
// Any parse error on an individual transaction is silently discarded.
func (l *Loop) routeTransactions(blk *chainio.Block) {
	for _, tx := range blk.Transactions {
		if tx.To == nil || *tx.To != l.cfg.Addresses.Submission {
			continue
		}
		if len(tx.Input) < 4 {
			continue
		}
		entity, ok := l.policy.Mapper.ByOmni(tx.From)
		if !ok {
			continue
		}

		var selector [4]byte
		copy(selector[:], tx.Input[:4])
		body := tx.Input[4:]
		wtx := round.WTxData{
			Hash:             tx.Hash,
			From:             tx.From,
			To:               *tx.To,
			Input:            tx.Input,
			BlockNumber:      blk.Number,
			TransactionIndex: tx.TransactionIndex,
			Value:            tx.Value,
			TimestampS:       blk.TimestampS,
		}

		switch selector {
		case events.Submit1Selector:
			l.routeSubmit1(entity, body, wtx)
		case events.Submit2Selector:
			l.routeSubmit2(entity, body, wtx)
		case events.SubmitSignaturesSelector:
			l.routeSubmitSignatures(entity, body, wtx)
		}
	}
}

func (l *Loop) routeSubmit1(entity *policy.Entity, body []byte, wtx round.WTxData) {
	parsed, err := events.ParseSubmit1(body)
	if err != nil {
		return
	}
	identity := entity.IdentityAddress.Hex()
	if parsed.FTSO != nil {
		if err := l.store.InsertSubmit1(round.FTSO, entity.IdentityAddress, *parsed.FTSO, wtx); err == nil {
			metrics.Observer().IncSubmit1("ftso", identity)
		}
	}
	if parsed.FDC != nil {
		if err := l.store.InsertSubmit1(round.FDC, entity.IdentityAddress, *parsed.FDC, wtx); err == nil {
			metrics.Observer().IncSubmit1("fdc", identity)
		}
	}
}

func (l *Loop) routeSubmit2(entity *policy.Entity, body []byte, wtx round.WTxData) {
	parsed, err := events.ParseSubmit2(body)
	if err != nil {
		return
	}
	identity := entity.IdentityAddress.Hex()
	if parsed.FTSO != nil {
		if err := l.store.InsertSubmit2(round.FTSO, entity.IdentityAddress, *parsed.FTSO, wtx); err == nil {
			metrics.Observer().IncSubmit2("ftso", identity)
			if entity.IdentityAddress == l.cfg.TargetIdentity {
				for _, idx := range parsed.FTSO.EmptyIndices() {
					metrics.Observer().IncFTSONoneValue(identity, idx)
				}
			}
		}
	}
	if parsed.FDC != nil {
		if err := l.store.InsertSubmit2(round.FDC, entity.IdentityAddress, *parsed.FDC, wtx); err == nil {
			metrics.Observer().IncSubmit2("fdc", identity)
		}
	}
}

func (l *Loop) routeSubmitSignatures(entity *policy.Entity, body []byte, wtx round.WTxData) {
	parsed, err := events.ParseSubmitSignatures(body)
	if err != nil {
		return
	}
	identity := entity.IdentityAddress.Hex()
	if parsed.FTSO != nil {
		if err := l.store.InsertSubmitSignatures(round.FTSO, entity.IdentityAddress, *parsed.FTSO, wtx); err == nil {
			metrics.Observer().IncSubmitSignatures("ftso", identity)
		}
	}
	if parsed.FDC != nil {
		if err := l.store.InsertSubmitSignatures(round.FDC, entity.IdentityAddress, *parsed.FDC, wtx); err == nil {
			metrics.Observer().IncSubmitSignatures("fdc", identity)
		}
	}
}

// judgeRound runs the FTSO and FDC validation engines against the target
// entity for one finalized round and fans the resulting messages out to
// the configured notification sink (spec.md §4.5 step 5).
func (l *Loop) judgeRound(ctx context.Context, vr *round.VotingRound) {
	entity, ok := l.policy.Mapper.ByIdentity(l.cfg.TargetIdentity)
	if !ok {
		l.log.Warn("target identity is not part of the current signing policy",
			slog.Uint64("voting_round_id", vr.VotingEpoch.ID()))
		return
	}

	roundMB := l.mb.WithRound(vr.VotingEpoch)
	ftsoMsgs := validate.EvaluateFTSO(vr, entity, roundMB.WithProtocol(round.FTSO))
	fdcMsgs := validate.EvaluateFDC(vr, entity, roundMB.WithProtocol(round.FDC))

	for _, msg := range ftsoMsgs {
		l.emit(ctx, round.FTSO.String(), msg)
	}
	for _, msg := range fdcMsgs {
		l.emit(ctx, round.FDC.String(), msg)
	}
}

func (l *Loop) emit(ctx context.Context, protocol string, msg validate.Message) {
	identity := l.cfg.TargetIdentity.Hex()
	metrics.Observer().IncMessage(msg.Level.String(), identity)
	if protocol != "" {
		if strings.Contains(msg.Text, "reveal offence") {
			metrics.Observer().IncRevealOffence(protocol, identity)
		}
		if strings.Contains(msg.Text, "signature doesn't match finalization") {
			metrics.Observer().IncSignatureMismatch(protocol, identity)
		}
	}

	switch msg.Level {
	case validate.LevelDebug:
		l.log.Debug(msg.Text)
	case validate.LevelInfo:
		l.log.Info(msg.Text)
	case validate.LevelWarning:
		l.log.Warn(msg.Text)
	default:
		l.log.Error(msg.Text)
	}

	if l.sink == nil {
		return
	}
	level := notify.Level{Value: int(msg.Level), Name: msg.Level.String()}
	if err := l.sink.Notify(ctx, level, msg.Text); err != nil {
		l.log.Warn("notification delivery failed", slog.String("error", err.Error()))
	}
}

func (l *Loop) setTargetEntityMetrics() {
	entity, ok := l.policy.Mapper.ByIdentity(l.cfg.TargetIdentity)
	if !ok {
		return
	}
	metrics.Observer().SetEntityWeights(l.cfg.TargetIdentity.Hex(),
		entity.WNatWeight, entity.WNatCappedWeight, entity.RegistrationWeight, entity.NormalizedWeight)
}
