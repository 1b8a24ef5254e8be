package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cosmterm/pkg/logging"

	"github.com/go-playground/validator/v10"
)

const ConfigFileName = ".cosmterm.json"

var validate = validator.New()

// ChainConfig holds the endpoints and denomination settings of one Cosmos chain.
type ChainConfig struct {
	Name         string   `json:"name" validate:"required"`
	ChainID      string   `json:"chain_id,omitempty"`
	Bech32Prefix string   `json:"bech32_prefix" validate:"required"`
	Denom        string   `json:"denom" validate:"required"`
	LCDURLs      []string `json:"lcd_urls" validate:"min=1,dive,url"`
	RPCURLs      []string `json:"rpc_urls" validate:"min=1,dive,url"`
	ExplorerURL  string   `json:"explorer_url,omitempty" validate:"omitempty,url"`
	GasPrice     float64  `json:"gas_price,omitempty" validate:"gte=0"`
	GasLimit     uint64   `json:"gas_limit,omitempty"`
}

// WalletConfig describes how the terminal obtains a key. KeyFile holds a hex
// secp256k1 private key; Address alone gives a watch-only session.
type WalletConfig struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	KeyFile string `json:"key_file,omitempty"`
}

// ContactConfig holds a saved chat contact.
type ContactConfig struct {
	Address string `json:"address" validate:"required"`
	Name    string `json:"name,omitempty"`
}

// ChatConfig holds the optional relay daemon location.
type ChatConfig struct {
	DaemonURL string `json:"daemon_url,omitempty" validate:"omitempty,url"`
}

// ProxyConfig holds the static/CORS proxy server settings. Values from the
// environment override the file, see ApplyEnv.
type ProxyConfig struct {
	Port                   int      `json:"port" envconfig:"PORT" validate:"gt=0,lt=65536"`
	LCDHost                string   `json:"lcd_host,omitempty" envconfig:"LCD_HOST" validate:"omitempty,url"`
	RPCHost                string   `json:"rpc_host,omitempty" envconfig:"RPC_HOST" validate:"omitempty,url"`
	StaticDir              string   `json:"static_dir" envconfig:"STATIC_DIR"`
	AllowedOrigins         []string `json:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	UpstreamTimeoutSeconds int      `json:"upstream_timeout_seconds" envconfig:"UPSTREAM_TIMEOUT_SECONDS" validate:"gte=0"`
}

// GlobalConfig holds application-wide settings.
type GlobalConfig struct {
	PrivacyTimeoutSeconds      int `json:"privacy_timeout_seconds"`
	StatusIntervalSeconds      int `json:"status_interval_seconds"`
	NetworkIntervalSeconds     int `json:"network_interval_seconds"`
	BalanceIntervalSeconds     int `json:"balance_interval_seconds"`
	RecentBlocks               int `json:"recent_blocks"`
	WalletDetectAttempts       int `json:"wallet_detect_attempts"`
	WalletDetectIntervalMS     int `json:"wallet_detect_interval_ms"`
	WalletDetectTimeoutSeconds int `json:"wallet_detect_timeout_seconds"`
}

// Config is the full contents of the config file.
type Config struct {
	Chains        []ChainConfig   `json:"chains" validate:"min=1,dive"`
	SelectedChain int             `json:"-"`
	Wallet        WalletConfig    `json:"wallet"`
	Contacts      []ContactConfig `json:"contacts" validate:"dive"`
	Chat          ChatConfig      `json:"chat"`
	Proxy         ProxyConfig     `json:"proxy"`
	Global        GlobalConfig    `json:"-"`
	Logging       logging.Config  `json:"logging"`
}

// ActiveChain returns the selected chain. The config must hold at least one chain.
func (c *Config) ActiveChain() ChainConfig {
	if c.SelectedChain >= 0 && c.SelectedChain < len(c.Chains) {
		return c.Chains[c.SelectedChain]
	}
	return c.Chains[0]
}

// Validate checks struct tags and the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("validation failed: configuration must have at least one chain")
	}
	for i, ch := range c.Chains {
		if strings.TrimSpace(ch.Name) == "" {
			return fmt.Errorf("validation failed: chain at index %d has no name", i)
		}
		if len(ch.LCDURLs) == 0 {
			return fmt.Errorf("validation failed: chain %s has no LCD URLs", ch.Name)
		}
		if len(ch.RPCURLs) == 0 {
			return fmt.Errorf("validation failed: chain %s has no RPC URLs", ch.Name)
		}
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// DefaultChain is used when no config file exists yet.
func DefaultChain() ChainConfig {
	return ChainConfig{
		Name:         "Cosmos Hub",
		ChainID:      "cosmoshub-4",
		Bech32Prefix: "cosmos",
		Denom:        "uatom",
		LCDURLs:      []string{"https://cosmos-rest.publicnode.com"},
		RPCURLs:      []string{"https://cosmos-rpc.publicnode.com"},
		ExplorerURL:  "https://www.mintscan.io/cosmos",
		GasPrice:     0.025,
		GasLimit:     200000,
	}
}

func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		PrivacyTimeoutSeconds:      60,
		StatusIntervalSeconds:      10,
		NetworkIntervalSeconds:     30,
		BalanceIntervalSeconds:     30,
		RecentBlocks:               10,
		WalletDetectAttempts:       10,
		WalletDetectIntervalMS:     500,
		WalletDetectTimeoutSeconds: 10,
	}
}

func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{
		Port:                   8080,
		StaticDir:              ".",
		AllowedOrigins:         []string{"*"},
		UpstreamTimeoutSeconds: 30,
	}
}

// Default returns the configuration used when the file does not exist.
func Default() *Config {
	return &Config{
		Chains:  []ChainConfig{DefaultChain()},
		Proxy:   DefaultProxyConfig(),
		Global:  DefaultGlobalConfig(),
		Logging: logging.DefaultConfig(),
	}
}

// DetectTimeout returns the wallet detection deadline as a duration.
func (g GlobalConfig) DetectTimeout() time.Duration {
	return time.Duration(g.WalletDetectTimeoutSeconds) * time.Second
}

// DetectInterval returns the wallet detection poll interval as a duration.
func (g GlobalConfig) DetectInterval() time.Duration {
	return time.Duration(g.WalletDetectIntervalMS) * time.Millisecond
}

// UpstreamTimeout returns the proxy upstream timeout as a duration.
func (p ProxyConfig) UpstreamTimeout() time.Duration {
	return time.Duration(p.UpstreamTimeoutSeconds) * time.Second
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func LoadConfigFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (*Config, error) {
	var raw struct {
		Chains        []ChainConfig   `json:"chains"`
		LCDURL        string          `json:"lcd_url"` // Legacy
		RPCURL        string          `json:"rpc_url"` // Legacy
		SelectedChain string          `json:"selected_chain"`
		Wallet        WalletConfig    `json:"wallet"`
		Contacts      json.RawMessage `json:"contacts"`
		Chat          ChatConfig      `json:"chat"`
		Proxy         *struct {
			Port                   *int     `json:"port"`
			LCDHost                string   `json:"lcd_host"`
			RPCHost                string   `json:"rpc_host"`
			StaticDir              *string  `json:"static_dir"`
			AllowedOrigins         []string `json:"allowed_origins"`
			UpstreamTimeoutSeconds *int     `json:"upstream_timeout_seconds"`
		} `json:"proxy"`
		Logging                    *logging.Config `json:"logging"`
		PrivacyTimeoutSeconds      *int            `json:"privacy_timeout_seconds"`
		StatusIntervalSeconds      *int            `json:"status_interval_seconds"`
		NetworkIntervalSeconds     *int            `json:"network_interval_seconds"`
		BalanceIntervalSeconds     *int            `json:"balance_interval_seconds"`
		RecentBlocks               *int            `json:"recent_blocks"`
		WalletDetectAttempts       *int            `json:"wallet_detect_attempts"`
		WalletDetectIntervalMS     *int            `json:"wallet_detect_interval_ms"`
		WalletDetectTimeoutSeconds *int            `json:"wallet_detect_timeout_seconds"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	cfg := Default()
	cfg.Chains = raw.Chains
	cfg.Wallet = raw.Wallet
	cfg.Chat = raw.Chat

	// Contacts may be a list of objects or a plain list of addresses.
	if len(raw.Contacts) > 0 {
		var contacts []ContactConfig
		if err := json.Unmarshal(raw.Contacts, &contacts); err != nil {
			var addrs []string
			if err2 := json.Unmarshal(raw.Contacts, &addrs); err2 == nil {
				for _, a := range addrs {
					contacts = append(contacts, ContactConfig{Address: a})
				}
			}
		}
		cfg.Contacts = contacts
	}

	// Migration for single-endpoint configs
	if len(cfg.Chains) == 0 && (raw.LCDURL != "" || raw.RPCURL != "") {
		chain := DefaultChain()
		chain.LCDURLs = nil
		chain.RPCURLs = nil
		if raw.LCDURL != "" {
			chain.LCDURLs = []string{raw.LCDURL}
		}
		if raw.RPCURL != "" {
			chain.RPCURLs = []string{raw.RPCURL}
		}
		cfg.Chains = []ChainConfig{chain}
		raw.SelectedChain = chain.Name
	}

	for i := range cfg.Chains {
		applyChainDefaults(&cfg.Chains[i])
	}

	cfg.SelectedChain = 0
	for i, c := range cfg.Chains {
		if c.Name == raw.SelectedChain {
			cfg.SelectedChain = i
			break
		}
	}

	if p := raw.Proxy; p != nil {
		if p.Port != nil {
			cfg.Proxy.Port = *p.Port
		}
		cfg.Proxy.LCDHost = p.LCDHost
		cfg.Proxy.RPCHost = p.RPCHost
		if p.StaticDir != nil {
			cfg.Proxy.StaticDir = *p.StaticDir
		}
		if len(p.AllowedOrigins) > 0 {
			cfg.Proxy.AllowedOrigins = p.AllowedOrigins
		}
		if p.UpstreamTimeoutSeconds != nil {
			cfg.Proxy.UpstreamTimeoutSeconds = *p.UpstreamTimeoutSeconds
		}
	}

	if raw.Logging != nil {
		if raw.Logging.Level != "" {
			cfg.Logging.Level = raw.Logging.Level
		}
		if raw.Logging.Format != "" {
			cfg.Logging.Format = raw.Logging.Format
		}
		cfg.Logging.File = raw.Logging.File
	}

	g := &cfg.Global
	setInt(&g.PrivacyTimeoutSeconds, raw.PrivacyTimeoutSeconds)
	setInt(&g.StatusIntervalSeconds, raw.StatusIntervalSeconds)
	setInt(&g.NetworkIntervalSeconds, raw.NetworkIntervalSeconds)
	setInt(&g.BalanceIntervalSeconds, raw.BalanceIntervalSeconds)
	setInt(&g.RecentBlocks, raw.RecentBlocks)
	setInt(&g.WalletDetectAttempts, raw.WalletDetectAttempts)
	setInt(&g.WalletDetectIntervalMS, raw.WalletDetectIntervalMS)
	setInt(&g.WalletDetectTimeoutSeconds, raw.WalletDetectTimeoutSeconds)

	return cfg, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func applyChainDefaults(c *ChainConfig) {
	if c.Denom == "" {
		c.Denom = "uatom"
	}
	if c.Bech32Prefix == "" {
		c.Bech32Prefix = "cosmos"
	}
	if c.GasLimit == 0 {
		c.GasLimit = 200000
	}
}

func SaveConfig(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	selectedName := ""
	if cfg.SelectedChain >= 0 && cfg.SelectedChain < len(cfg.Chains) {
		selectedName = cfg.Chains[cfg.SelectedChain].Name
	}
	g := cfg.Global
	out := struct {
		Chains                     []ChainConfig   `json:"chains"`
		SelectedChain              string          `json:"selected_chain"`
		Wallet                     WalletConfig    `json:"wallet"`
		Contacts                   []ContactConfig `json:"contacts"`
		Chat                       ChatConfig      `json:"chat"`
		Proxy                      ProxyConfig     `json:"proxy"`
		Logging                    logging.Config  `json:"logging"`
		PrivacyTimeoutSeconds      int             `json:"privacy_timeout_seconds"`
		StatusIntervalSeconds      int             `json:"status_interval_seconds"`
		NetworkIntervalSeconds     int             `json:"network_interval_seconds"`
		BalanceIntervalSeconds     int             `json:"balance_interval_seconds"`
		RecentBlocks               int             `json:"recent_blocks"`
		WalletDetectAttempts       int             `json:"wallet_detect_attempts"`
		WalletDetectIntervalMS     int             `json:"wallet_detect_interval_ms"`
		WalletDetectTimeoutSeconds int             `json:"wallet_detect_timeout_seconds"`
	}{
		Chains:                     cfg.Chains,
		SelectedChain:              selectedName,
		Wallet:                     cfg.Wallet,
		Contacts:                   cfg.Contacts,
		Chat:                       cfg.Chat,
		Proxy:                      cfg.Proxy,
		Logging:                    cfg.Logging,
		PrivacyTimeoutSeconds:      g.PrivacyTimeoutSeconds,
		StatusIntervalSeconds:      g.StatusIntervalSeconds,
		NetworkIntervalSeconds:     g.NetworkIntervalSeconds,
		BalanceIntervalSeconds:     g.BalanceIntervalSeconds,
		RecentBlocks:               g.RecentBlocks,
		WalletDetectAttempts:       g.WalletDetectAttempts,
		WalletDetectIntervalMS:     g.WalletDetectIntervalMS,
		WalletDetectTimeoutSeconds: g.WalletDetectTimeoutSeconds,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}
