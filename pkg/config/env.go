package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override, e.g. COSMTERM_LCD_HOST.
// Unprefixed names (PORT, LCD_HOST) are accepted as a fallback.
const EnvPrefix = "COSMTERM"

// PrivateKeyEnv names the variable holding a hex private key for the local wallet.
const PrivateKeyEnv = "COSMTERM_PRIVATE_KEY"

// ApplyEnv overlays environment variables on the proxy settings. Variables
// that are not set leave the file values untouched.
func (p *ProxyConfig) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, p); err != nil {
		return fmt.Errorf("failed to read proxy environment: %w", err)
	}
	var alias timeoutEnv
	if err := envconfig.Process(EnvPrefix, &alias); err != nil {
		return fmt.Errorf("failed to read proxy environment: %w", err)
	}
	if alias.UpstreamTimeout != "" {
		secs, err := parseTimeoutSeconds(alias.UpstreamTimeout)
		if err != nil {
			return fmt.Errorf("invalid UPSTREAM_TIMEOUT %q: %w", alias.UpstreamTimeout, err)
		}
		p.UpstreamTimeoutSeconds = secs
	}
	return nil
}

// timeoutEnv reads UPSTREAM_TIMEOUT, which wins over UPSTREAM_TIMEOUT_SECONDS.
type timeoutEnv struct {
	UpstreamTimeout string `envconfig:"UPSTREAM_TIMEOUT"`
}

// parseTimeoutSeconds accepts bare seconds ("45") or a duration ("45s", "1m").
func parseTimeoutSeconds(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("must not be negative")
		}
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return int(d.Round(time.Second) / time.Second), nil
}

// ResolveUpstreams fills empty upstream hosts from the chain's first LCD and
// RPC endpoints and validates the result.
func (p *ProxyConfig) ResolveUpstreams(chain ChainConfig) error {
	if p.LCDHost == "" && len(chain.LCDURLs) > 0 {
		p.LCDHost = chain.LCDURLs[0]
	}
	if p.RPCHost == "" && len(chain.RPCURLs) > 0 {
		p.RPCHost = chain.RPCURLs[0]
	}
	if p.LCDHost == "" || p.RPCHost == "" {
		return fmt.Errorf("proxy needs both an LCD and an RPC upstream")
	}
	if len(p.AllowedOrigins) == 0 {
		p.AllowedOrigins = []string{"*"}
	}
	if p.StaticDir == "" {
		p.StaticDir = "."
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
