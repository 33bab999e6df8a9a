// Package config resolves the observer's environment-variable
// configuration: the RPC endpoint, the target identity, and the optional
// notification sinks.
package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError wraps any failure encountered while resolving configuration;
// it is always fatal at bootstrap.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// Chain identifies one of the four supported Flare-family networks by its
// eth_chainId.
type Chain struct {
	ID   uint64
	Name string
}

var supportedChains = map[uint64]string{
	14:  "flare",
	16:  "coston",
	19:  "songbird",
	114: "coston2",
}

// ChainByID returns the network name for a supported chain id.
func ChainByID(id uint64) (Chain, bool) {
	name, ok := supportedChains[id]
	if !ok {
		return Chain{}, false
	}
	return Chain{ID: id, Name: name}, true
}

// rawEnv mirrors the environment variable table; envconfig.Process fills it
// directly from the process environment (no prefix, matching the all-caps
// names spec.md names verbatim).
type rawEnv struct {
	RPCURL          string `envconfig:"RPC_URL" required:"true"`
	IdentityAddress string `envconfig:"IDENTITY_ADDRESS" required:"true"`

	NotificationDiscordWebhook   string `envconfig:"NOTIFICATION_DISCORD_WEBHOOK"`
	NotificationSlackWebhook     string `envconfig:"NOTIFICATION_SLACK_WEBHOOK"`
	NotificationTelegramBotToken string `envconfig:"NOTIFICATION_TELEGRAM_BOT_TOKEN"`
	NotificationTelegramChatID   string `envconfig:"NOTIFICATION_TELEGRAM_CHAT_ID"`
	NotificationGenericWebhook   string `envconfig:"NOTIFICATION_GENERIC_WEBHOOK"`

	// ContractManifestPath points at the chain-artifacts manifest (contract
	// name -> address, plus a per-contract ABI JSON path) that the
	// out-of-scope "contract ABI loading" collaborator produces (spec.md §6).
	ContractManifestPath string `envconfig:"CONTRACT_MANIFEST_PATH"`
	// MetricsListenAddress is where the read-only Prometheus endpoint binds.
	MetricsListenAddress string `envconfig:"METRICS_LISTEN_ADDRESS" default:":9090"`
	// AvgBlockTimeSeconds seeds the bootstrap boundary finder's initial
	// guess (spec.md §9 Open Question (a)).
	AvgBlockTimeSeconds int64 `envconfig:"AVG_BLOCK_TIME_SECONDS" default:"1"`
}

// Notifications carries the optional sink endpoints, unvalidated beyond the
// Telegram pairing rule.
type Notifications struct {
	DiscordWebhook   string
	SlackWebhook     string
	TelegramBotToken string
	TelegramChatID   string
	GenericWebhook   string
}

// Config is the fully resolved observer configuration. ChainID/ChainName
// are populated by ResolveChain once the RPC endpoint answers eth_chainId;
// they are zero-valued immediately after Load.
type Config struct {
	RPCURL          string
	IdentityAddress common.Address

	ChainID   uint64
	ChainName string

	Notifications Notifications

	ContractManifestPath string
	MetricsListenAddress string
	AvgBlockTimeSeconds  int64
}

// Load resolves configuration from the process environment. It validates
// the identity address and the Telegram bot-token/chat-id pairing, but does
// not contact the chain: call ResolveChain once a JSON-RPC client is
// available.
func Load() (*Config, error) {
	var raw rawEnv
	if err := envconfig.Process("", &raw); err != nil {
		return nil, &ConfigError{Reason: err.Error()}
	}

	identity := strings.TrimSpace(raw.IdentityAddress)
	if !common.IsHexAddress(identity) {
		return nil, &ConfigError{Reason: fmt.Sprintf("IDENTITY_ADDRESS %q is not a valid address", identity)}
	}

	hasToken := strings.TrimSpace(raw.NotificationTelegramBotToken) != ""
	hasChat := strings.TrimSpace(raw.NotificationTelegramChatID) != ""
	if hasToken != hasChat {
		return nil, &ConfigError{Reason: "NOTIFICATION_TELEGRAM_BOT_TOKEN and NOTIFICATION_TELEGRAM_CHAT_ID must both be set or both be empty"}
	}

	cfg := &Config{
		RPCURL:          strings.TrimSpace(raw.RPCURL),
		IdentityAddress: common.HexToAddress(identity),
		Notifications: Notifications{
			DiscordWebhook:   strings.TrimSpace(raw.NotificationDiscordWebhook),
			SlackWebhook:     strings.TrimSpace(raw.NotificationSlackWebhook),
			TelegramBotToken: strings.TrimSpace(raw.NotificationTelegramBotToken),
			TelegramChatID:   strings.TrimSpace(raw.NotificationTelegramChatID),
			GenericWebhook:   strings.TrimSpace(raw.NotificationGenericWebhook),
		},
		ContractManifestPath: strings.TrimSpace(raw.ContractManifestPath),
		MetricsListenAddress: strings.TrimSpace(raw.MetricsListenAddress),
		AvgBlockTimeSeconds:  raw.AvgBlockTimeSeconds,
	}
	if cfg.RPCURL == "" {
		return nil, &ConfigError{Reason: "RPC_URL is required"}
	}
	return cfg, nil
}

// ResolveChain validates a discovered chain id against the supported set
// and records it on the config.
func (c *Config) ResolveChain(id uint64) error {
	chain, ok := ChainByID(id)
	if !ok {
		return &ConfigError{Reason: fmt.Sprintf("chain id %d is not one of the supported Flare-family networks", id)}
	}
	c.ChainID = chain.ID
	c.ChainName = chain.Name
	return nil
}
