package metrics

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ObserverMetrics is the process-wide metrics registry for the observer:
// gauges describing the current identity/chain/epoch context, counters for
// submission and reveal-offence activity, and gauges for the target
// entity's on-chain weights.
type ObserverMetrics struct {
	observerInfo    *prometheus.GaugeVec
	rewardEpochInfo *prometheus.GaugeVec
	votingEpochInfo *prometheus.GaugeVec
	messageTotal    *prometheus.CounterVec

	submit1Total          *prometheus.CounterVec
	submit2Total          *prometheus.CounterVec
	submitSignaturesTotal *prometheus.CounterVec
	revealOffenceTotal    *prometheus.CounterVec
	signatureMismatch     *prometheus.CounterVec
	ftsoNoneValues        *prometheus.CounterVec

	entityWNatWeight       *prometheus.GaugeVec
	entityWNatCappedWeight *prometheus.GaugeVec
	entityRegistrationWt   *prometheus.GaugeVec
	entityNormalizedWt     *prometheus.GaugeVec
}

var (
	observerOnce     sync.Once
	observerRegistry *ObserverMetrics
)

// Observer returns the process-wide metrics singleton, registering it with
// the default Prometheus registry on first use.
func Observer() *ObserverMetrics {
	observerOnce.Do(func() {
		observerRegistry = &ObserverMetrics{
			observerInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "observer_info",
				Help: "Static info about the running observer instance.",
			}, []string{"identity_address", "chain_id"}),
			rewardEpochInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "reward_epoch_info",
				Help: "Current reward epoch id being tracked.",
			}, []string{"reward_epoch_id"}),
			votingEpochInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "voting_epoch_info",
				Help: "Current voting epoch id being tracked.",
			}, []string{"voting_epoch_id"}),
			messageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "message_total",
				Help: "Count of validation messages emitted by level.",
			}, []string{"level", "identity_address"}),
			submit1Total: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "submit1_total",
				Help: "Count of observed submit1 transactions by protocol.",
			}, []string{"protocol", "identity_address"}),
			submit2Total: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "submit2_total",
				Help: "Count of observed submit2 transactions by protocol.",
			}, []string{"protocol", "identity_address"}),
			submitSignaturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "submit_signatures_total",
				Help: "Count of observed submitSignatures transactions by protocol.",
			}, []string{"protocol", "identity_address"}),
			revealOffenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reveal_offence_total",
				Help: "Count of rounds flagged with a reveal offence by protocol.",
			}, []string{"protocol", "identity_address"}),
			signatureMismatch: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "signature_mismatch_total",
				Help: "Count of submitSignatures whose recovered signer didn't match the finalization, by protocol.",
			}, []string{"protocol", "identity_address"}),
			ftsoNoneValues: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ftso_none_values_total",
				Help: "Count of FTSO submit2 feed values observed as the sentinel 'None' value, by feed index.",
			}, []string{"identity_address", "index"}),
			entityWNatWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "entity_wnat_weight",
				Help: "Target entity's WNat vote power weight for the current reward epoch.",
			}, []string{"identity_address"}),
			entityWNatCappedWeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "entity_wnat_capped_weight",
				Help: "Target entity's capped WNat vote power weight for the current reward epoch.",
			}, []string{"identity_address"}),
			entityRegistrationWt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "entity_registration_weight",
				Help: "Target entity's registration weight for the current reward epoch.",
			}, []string{"identity_address"}),
			entityNormalizedWt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "entity_normalized_weight",
				Help: "Target entity's normalized signing-policy weight for the current reward epoch.",
			}, []string{"identity_address"}),
		}
		prometheus.MustRegister(
			observerRegistry.observerInfo,
			observerRegistry.rewardEpochInfo,
			observerRegistry.votingEpochInfo,
			observerRegistry.messageTotal,
			observerRegistry.submit1Total,
			observerRegistry.submit2Total,
			observerRegistry.submitSignaturesTotal,
			observerRegistry.revealOffenceTotal,
			observerRegistry.signatureMismatch,
			observerRegistry.ftsoNoneValues,
			observerRegistry.entityWNatWeight,
			observerRegistry.entityWNatCappedWeight,
			observerRegistry.entityRegistrationWt,
			observerRegistry.entityNormalizedWt,
		)
	})
	return observerRegistry
}

// SetObserverInfo pins the static instance-identifying gauge to 1.
func (m *ObserverMetrics) SetObserverInfo(identityAddress, chainID string) {
	if m == nil {
		return
	}
	m.observerInfo.WithLabelValues(normaliseAddress(identityAddress), chainID).Set(1)
}

// SetRewardEpoch updates the reward-epoch gauge, clearing the previous
// epoch's series so only the current epoch reads 1.
func (m *ObserverMetrics) SetRewardEpoch(id uint64) {
	if m == nil {
		return
	}
	m.rewardEpochInfo.Reset()
	m.rewardEpochInfo.WithLabelValues(fmt.Sprintf("%d", id)).Set(1)
}

// SetVotingEpoch updates the voting-epoch gauge the same way.
func (m *ObserverMetrics) SetVotingEpoch(id uint64) {
	if m == nil {
		return
	}
	m.votingEpochInfo.Reset()
	m.votingEpochInfo.WithLabelValues(fmt.Sprintf("%d", id)).Set(1)
}

// IncMessage records one emitted validation message at the given level.
func (m *ObserverMetrics) IncMessage(level, identityAddress string) {
	if m == nil {
		return
	}
	m.messageTotal.WithLabelValues(level, normaliseAddress(identityAddress)).Inc()
}

func (m *ObserverMetrics) IncSubmit1(protocol, identityAddress string) {
	if m == nil {
		return
	}
	m.submit1Total.WithLabelValues(protocol, normaliseAddress(identityAddress)).Inc()
}

func (m *ObserverMetrics) IncSubmit2(protocol, identityAddress string) {
	if m == nil {
		return
	}
	m.submit2Total.WithLabelValues(protocol, normaliseAddress(identityAddress)).Inc()
}

func (m *ObserverMetrics) IncSubmitSignatures(protocol, identityAddress string) {
	if m == nil {
		return
	}
	m.submitSignaturesTotal.WithLabelValues(protocol, normaliseAddress(identityAddress)).Inc()
}

func (m *ObserverMetrics) IncRevealOffence(protocol, identityAddress string) {
	if m == nil {
		return
	}
	m.revealOffenceTotal.WithLabelValues(protocol, normaliseAddress(identityAddress)).Inc()
}

func (m *ObserverMetrics) IncSignatureMismatch(protocol, identityAddress string) {
	if m == nil {
		return
	}
	m.signatureMismatch.WithLabelValues(protocol, normaliseAddress(identityAddress)).Inc()
}

// IncFTSONoneValue records a single FTSO feed index observed as absent.
func (m *ObserverMetrics) IncFTSONoneValue(identityAddress string, index int) {
	if m == nil {
		return
	}
	m.ftsoNoneValues.WithLabelValues(normaliseAddress(identityAddress), fmt.Sprintf("%d", index)).Inc()
}

// SetEntityWeights refreshes the four entity weight gauges for the target
// identity, called once per reward-epoch rollover.
func (m *ObserverMetrics) SetEntityWeights(identityAddress string, wNat, wNatCapped, registration uint64, normalized uint16) {
	if m == nil {
		return
	}
	label := normaliseAddress(identityAddress)
	m.entityWNatWeight.WithLabelValues(label).Set(float64(wNat))
	m.entityWNatCappedWeight.WithLabelValues(label).Set(float64(wNatCapped))
	m.entityRegistrationWt.WithLabelValues(label).Set(float64(registration))
	m.entityNormalizedWt.WithLabelValues(label).Set(float64(normalized))
}

func normaliseAddress(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}
