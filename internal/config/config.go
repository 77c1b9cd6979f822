// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	License            string   `mapstructure:"license"`
	KeygenAccountID    string   `mapstructure:"keygen_account_id"`
	KeygenProductToken string   `mapstructure:"keygen_product_token"`
	KeygenProductID    string   `mapstructure:"keygen_product_id"`
	RPCList            []string `mapstructure:"rpc_list"`
	JupiterBaseURL     string   `mapstructure:"jupiter_base_url"`
	JupiterAPIKey      string   `mapstructure:"jupiter_api_key"`
	KeypairPath        string   `mapstructure:"keypair_path"`
	SlippageBps        int      `mapstructure:"slippage_bps"`
	PriorityLevel      string   `mapstructure:"priority_level"`
	ComputeUnitLimit   uint32   `mapstructure:"compute_unit_limit"`
	ConfirmTimeout     int      `mapstructure:"confirm_timeout"`
	PollInterval       int      `mapstructure:"poll_interval"`
	Retries            int      `mapstructure:"retries"`
	SkipPreflight      bool     `mapstructure:"skip_preflight"`
	DebugLogging       bool     `mapstructure:"debug_logging"`
	LogFile            string   `mapstructure:"log_file"`
	MetricsEnabled     bool     `mapstructure:"metrics_enabled"`
}

const (
	DefaultJupiterBaseURL = "https://quote-api.jup.ag/v6"
	DefaultSlippageBps    = 50
	DefaultPriorityLevel  = "medium"
	DefaultConfirmTimeout = 60   // seconds
	DefaultPollInterval   = 1000 // milliseconds
	DefaultRetries        = 3
	DefaultLogFile        = "jupiter.log"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"jupiter_base_url": DefaultJupiterBaseURL,
		"slippage_bps":     DefaultSlippageBps,
		"priority_level":   DefaultPriorityLevel,
		"confirm_timeout":  DefaultConfirmTimeout,
		"poll_interval":    DefaultPollInterval,
		"retries":          DefaultRetries,
		"log_file":         DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return errors.New("invalid RPC URL protocol")
		}
	}
	if err := validateURLWithCache(cfg.JupiterBaseURL, "http"); err != nil {
		return errors.New("invalid Jupiter base URL")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.SlippageBps < 0 || cfg.SlippageBps > 10000 {
		return errors.New("slippage_bps must be between 0 and 10000")
	}
	if cfg.ConfirmTimeout <= 0 {
		return errors.New("invalid confirm_timeout")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("invalid poll_interval")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("JUPITER_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envLicense := v.GetString("LICENSE")
	if envLicense != "" {
		cfg.License = envLicense
	}

	envAPIKey := v.GetString("API_KEY")
	if envAPIKey != "" {
		cfg.JupiterAPIKey = envAPIKey
	}

	envRPCList := v.GetString("RPC_LIST")
	if envRPCList != "" {
		rpcs := strings.Split(envRPCList, ",")
		var cleanRPCs []string
		for _, rpc := range rpcs {
			clean := strings.TrimSpace(rpc)
			if clean != "" {
				cleanRPCs = append(cleanRPCs, clean)
			}
		}
		if len(cleanRPCs) > 0 {
			cfg.RPCList = cleanRPCs
		}
	}
	return nil
}
