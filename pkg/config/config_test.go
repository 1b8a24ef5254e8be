package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChain() ChainConfig {
	return ChainConfig{
		Name:         "Hub",
		Bech32Prefix: "cosmos",
		Denom:        "uatom",
		LCDURLs:      []string{"http://localhost:1317"},
		RPCURLs:      []string{"http://localhost:26657"},
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	reader := strings.NewReader(`{ "chains": [`)
	_, err := LoadConfig(reader)
	if err == nil {
		t.Error("Expected error loading malformed config, got nil")
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Len(t, cfg.Chains, 1)
	assert.Equal(t, "cosmoshub-4", cfg.Chains[0].ChainID)
	assert.Equal(t, 10, cfg.Global.StatusIntervalSeconds)
	assert.Equal(t, 30, cfg.Global.NetworkIntervalSeconds)
	assert.Equal(t, 8080, cfg.Proxy.Port)
}

func TestSaveConfig(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Chains = []ChainConfig{testChain()}
	cfg.Contacts = []ContactConfig{{Address: "cosmos1abc", Name: "Alice"}}
	cfg.Global.PrivacyTimeoutSeconds = 120

	require.NoError(t, SaveConfig(cfg, tmpPath))

	loaded, err := LoadConfigFromFile(tmpPath)
	require.NoError(t, err)

	require.Len(t, loaded.Chains, 1)
	assert.Equal(t, "Hub", loaded.Chains[0].Name)
	assert.Equal(t, 0, loaded.SelectedChain)
	assert.Equal(t, 120, loaded.Global.PrivacyTimeoutSeconds)
	require.Len(t, loaded.Contacts, 1)
	assert.Equal(t, "Alice", loaded.Contacts[0].Name)
}

func TestSaveConfig_BackupAndRestore(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Chains = []ChainConfig{testChain()}
	require.NoError(t, SaveConfig(cfg, tmpPath))

	cfg.Chains[0].Name = "Renamed"
	require.NoError(t, SaveConfig(cfg, tmpPath))

	matches, err := filepath.Glob(tmpPath + ".*.bak")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, RestoreLastBackup(tmpPath))
	restored, err := LoadConfigFromFile(tmpPath)
	require.NoError(t, err)
	assert.Equal(t, "Hub", restored.Chains[0].Name)
}

func TestRestoreLastBackup_None(t *testing.T) {
	err := RestoreLastBackup(filepath.Join(t.TempDir(), "config.json"))
	assert.Error(t, err)
}

func TestLoadConfig_TableDriven(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		jsonContent string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name: "Valid Modern Config",
			jsonContent: `{
				"chains": [
					{"name": "Hub", "lcd_urls": ["http://lcd"], "rpc_urls": ["http://rpc"]},
					{"name": "Osmosis", "bech32_prefix": "osmo", "denom": "uosmo", "lcd_urls": ["http://lcd2"], "rpc_urls": ["http://rpc2"]}
				],
				"selected_chain": "Osmosis",
				"privacy_timeout_seconds": 100,
				"status_interval_seconds": 5
			}`,
			validate: func(t *testing.T, c *Config) {
				require.Len(t, c.Chains, 2)
				assert.Equal(t, 1, c.SelectedChain)
				assert.Equal(t, "Osmosis", c.ActiveChain().Name)
				assert.Equal(t, "osmo", c.ActiveChain().Bech32Prefix)
				assert.Equal(t, 100, c.Global.PrivacyTimeoutSeconds)
				assert.Equal(t, 5, c.Global.StatusIntervalSeconds)
				assert.Equal(t, 30, c.Global.NetworkIntervalSeconds)
			},
		},
		{
			name: "Chain Defaults",
			jsonContent: `{
				"chains": [{"name": "Hub", "lcd_urls": ["http://lcd"], "rpc_urls": ["http://rpc"]}]
			}`,
			validate: func(t *testing.T, c *Config) {
				assert.Equal(t, "uatom", c.Chains[0].Denom)
				assert.Equal(t, "cosmos", c.Chains[0].Bech32Prefix)
				assert.Equal(t, uint64(200000), c.Chains[0].GasLimit)
			},
		},
		{
			name: "Legacy Contacts (String Array)",
			jsonContent: `{
				"contacts": ["cosmos1aaa", "cosmos1bbb"],
				"chains": [{"name": "Hub", "lcd_urls": ["http://lcd"], "rpc_urls": ["http://rpc"]}]
			}`,
			validate: func(t *testing.T, c *Config) {
				require.Len(t, c.Contacts, 2)
				assert.Equal(t, "cosmos1aaa", c.Contacts[0].Address)
				assert.Equal(t, "cosmos1bbb", c.Contacts[1].Address)
			},
		},
		{
			name: "Legacy Single Endpoints",
			jsonContent: `{
				"lcd_url": "http://legacy-lcd",
				"rpc_url": "http://legacy-rpc"
			}`,
			validate: func(t *testing.T, c *Config) {
				require.Len(t, c.Chains, 1)
				assert.Equal(t, "Cosmos Hub", c.Chains[0].Name)
				assert.Equal(t, []string{"http://legacy-lcd"}, c.Chains[0].LCDURLs)
				assert.Equal(t, []string{"http://legacy-rpc"}, c.Chains[0].RPCURLs)
			},
		},
		{
			name: "Proxy Section",
			jsonContent: `{
				"chains": [{"name": "Hub", "lcd_urls": ["http://lcd"], "rpc_urls": ["http://rpc"]}],
				"proxy": {"port": 3000, "lcd_host": "http://up-lcd", "static_dir": "public"}
			}`,
			validate: func(t *testing.T, c *Config) {
				assert.Equal(t, 3000, c.Proxy.Port)
				assert.Equal(t, "http://up-lcd", c.Proxy.LCDHost)
				assert.Equal(t, "public", c.Proxy.StaticDir)
				assert.Equal(t, []string{"*"}, c.Proxy.AllowedOrigins)
				assert.Equal(t, 30, c.Proxy.UpstreamTimeoutSeconds)
			},
		},
		{
			name:        "Malformed JSON",
			jsonContent: `{ "chains": [ unclosed_array`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := LoadConfig(strings.NewReader(tt.jsonContent))

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Chains = nil
	assert.Error(t, cfg.Validate())

	cfg.Chains = []ChainConfig{testChain()}
	assert.NoError(t, cfg.Validate())

	cfg.Chains[0].LCDURLs = []string{"not a url"}
	assert.Error(t, cfg.Validate())

	cfg.Chains[0] = testChain()
	cfg.Chains[0].RPCURLs = nil
	assert.Error(t, cfg.Validate())

	cfg.Chains[0] = testChain()
	cfg.Proxy.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestSaveConfig_PermissionError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	tmpDir := t.TempDir()
	require.NoError(t, os.Chmod(tmpDir, 0500))
	defer func() { _ = os.Chmod(tmpDir, 0700) }()

	cfg := Default()
	cfg.Chains = []ChainConfig{testChain()}

	err := SaveConfig(cfg, filepath.Join(tmpDir, "config.json"))
	assert.Error(t, err)
}

func TestProxyConfig_ApplyEnv(t *testing.T) {
	t.Setenv("COSMTERM_PORT", "9999")
	t.Setenv("COSMTERM_LCD_HOST", "http://env-lcd")
	t.Setenv("COSMTERM_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	p := DefaultProxyConfig()
	p.RPCHost = "http://file-rpc"
	require.NoError(t, p.ApplyEnv())

	assert.Equal(t, 9999, p.Port)
	assert.Equal(t, "http://env-lcd", p.LCDHost)
	assert.Equal(t, "http://file-rpc", p.RPCHost)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, p.AllowedOrigins)
	assert.Equal(t, 30, p.UpstreamTimeoutSeconds)
}

func TestProxyConfig_ApplyEnv_UpstreamTimeout(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    int
		wantErr bool
	}{
		{"seconds field", map[string]string{"COSMTERM_UPSTREAM_TIMEOUT_SECONDS": "12"}, 12, false},
		{"bare seconds", map[string]string{"UPSTREAM_TIMEOUT": "45"}, 45, false},
		{"duration", map[string]string{"COSMTERM_UPSTREAM_TIMEOUT": "1m30s"}, 90, false},
		{"alias wins", map[string]string{"UPSTREAM_TIMEOUT_SECONDS": "12", "UPSTREAM_TIMEOUT": "5s"}, 5, false},
		{"invalid", map[string]string{"UPSTREAM_TIMEOUT": "soon"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			p := DefaultProxyConfig()
			err := p.ApplyEnv()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.UpstreamTimeoutSeconds)
		})
	}
}

func TestProxyConfig_ResolveUpstreams(t *testing.T) {
	p := DefaultProxyConfig()
	require.NoError(t, p.ResolveUpstreams(testChain()))
	assert.Equal(t, "http://localhost:1317", p.LCDHost)
	assert.Equal(t, "http://localhost:26657", p.RPCHost)

	empty := DefaultProxyConfig()
	assert.Error(t, empty.ResolveUpstreams(ChainConfig{Name: "x"}))
}
