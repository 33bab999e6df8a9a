package config

import "testing"

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
	fn()
}

func TestLoadRequiresIdentityAddress(t *testing.T) {
	withEnv(t, map[string]string{
		"RPC_URL":          "https://example.invalid",
		"IDENTITY_ADDRESS": "not-an-address",
	}, func() {
		if _, err := Load(); err == nil {
			t.Fatal("expected error for invalid identity address")
		}
	})
}

func TestLoadRejectsLopsidedTelegramConfig(t *testing.T) {
	withEnv(t, map[string]string{
		"RPC_URL":                       "https://example.invalid",
		"IDENTITY_ADDRESS":              "0x00000000000000000000000000000000000000aa",
		"NOTIFICATION_TELEGRAM_BOT_TOKEN": "token-only",
	}, func() {
		if _, err := Load(); err == nil {
			t.Fatal("expected error when only the bot token is set")
		}
	})
}

func TestLoadSucceedsWithMinimalConfig(t *testing.T) {
	withEnv(t, map[string]string{
		"RPC_URL":          "https://example.invalid",
		"IDENTITY_ADDRESS": "0x00000000000000000000000000000000000000aa",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.RPCURL != "https://example.invalid" {
			t.Fatalf("RPCURL = %q", cfg.RPCURL)
		}
	})
}

func TestResolveChainRejectsUnsupportedID(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ResolveChain(1); err == nil {
		t.Fatal("expected error for chain id 1 (mainnet ethereum, not a Flare network)")
	}
	if err := cfg.ResolveChain(19); err != nil {
		t.Fatalf("ResolveChain(19): %v", err)
	}
	if cfg.ChainName != "songbird" {
		t.Fatalf("ChainName = %q, want songbird", cfg.ChainName)
	}
}
