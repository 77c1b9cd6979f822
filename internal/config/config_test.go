// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

var validConfigJSON = `{
    "license": "test-license-key",
    "rpc_list": [
        "https://api.mainnet-beta.solana.com"
    ],
    "jupiter_base_url": "https://quote-api.jup.ag/v6",
    "slippage_bps": 100,
    "priority_level": "high",
    "confirm_timeout": 30,
    "poll_interval": 500,
    "retries": 5,
    "debug_logging": true
}`

var invalidConfigJSON = `{
    "rpc_list": [],
    "confirm_timeout": -1
}`

func setupTestConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(*Config) bool
	}{
		{
			name:    "Valid config",
			content: validConfigJSON,
			wantErr: false,
			check: func(cfg *Config) bool {
				return cfg.License == "test-license-key" &&
					len(cfg.RPCList) == 1 &&
					cfg.SlippageBps == 100 &&
					cfg.PriorityLevel == "high" &&
					cfg.ConfirmTimeout == 30 &&
					cfg.Retries == 5
			},
		},
		{
			name:    "Invalid config - empty rpc_list",
			content: invalidConfigJSON,
			wantErr: true,
			check:   nil,
		},
		{
			name:    "Defaults applied",
			content: `{"rpc_list": ["https://api.mainnet-beta.solana.com"]}`,
			wantErr: false,
			check: func(cfg *Config) bool {
				return cfg.JupiterBaseURL == DefaultJupiterBaseURL &&
					cfg.SlippageBps == DefaultSlippageBps &&
					cfg.PriorityLevel == DefaultPriorityLevel &&
					cfg.ConfirmTimeout == DefaultConfirmTimeout &&
					cfg.PollInterval == DefaultPollInterval &&
					cfg.Retries == DefaultRetries
			},
		},
		{
			name:    "Invalid RPC protocol",
			content: `{"rpc_list": ["ftp://api.mainnet-beta.solana.com"]}`,
			wantErr: true,
			check:   nil,
		},
		{
			name:    "Slippage out of range",
			content: `{"rpc_list": ["https://api.mainnet-beta.solana.com"], "slippage_bps": 20000}`,
			wantErr: true,
			check:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := setupTestConfig(t, tt.content)

			cfg, err := LoadConfig(configPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("LoadConfig() produced unexpected config: %+v", cfg)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JUPITER_SWAP_LICENSE", "env-license")
	t.Setenv("JUPITER_SWAP_RPC_LIST", "https://rpc-one.example.com, https://rpc-two.example.com")

	configPath := setupTestConfig(t, validConfigJSON)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.License != "env-license" {
		t.Errorf("expected env license override, got %q", cfg.License)
	}
	if len(cfg.RPCList) != 2 || cfg.RPCList[0] != "https://rpc-one.example.com" {
		t.Errorf("expected env rpc_list override, got %v", cfg.RPCList)
	}
}
