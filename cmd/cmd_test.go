package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"cosmterm/pkg/config"
	"cosmterm/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStatusRPC answers CometBFT JSON-RPC status calls for network.
func newStatusRPC(t *testing.T, network string, height int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"node_info": map[string]interface{}{"network": network, "moniker": "node0"},
				"sync_info": map[string]interface{}{
					"latest_block_height": strconv.FormatInt(height, 10),
					"latest_block_time":   time.Now().UTC().Format(time.RFC3339Nano),
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testChain(rpcURLs ...string) config.ChainConfig {
	chain := config.DefaultChain()
	chain.ChainID = ""
	chain.RPCURLs = rpcURLs
	return chain
}

func TestRunCheck_FillsChainID(t *testing.T) {
	srv := newStatusRPC(t, "cosmoshub-4", 100)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := config.Default()
	cfg.Chains = []config.ChainConfig{testChain(srv.URL)}

	var out bytes.Buffer
	report := runCheck(context.Background(), cfg, path, checkOptions{}, &out)

	assert.True(t, report.ValidStructure)
	assert.True(t, report.ConfigUpdated)
	assert.Empty(t, report.SaveError)
	require.Len(t, report.Chains, 1)
	assert.True(t, report.Chains[0].ChainIDUpdated)
	assert.Equal(t, "cosmoshub-4", report.Chains[0].ObservedChainID)
	require.Len(t, report.Chains[0].RPCs, 1)
	assert.Equal(t, "ok", report.Chains[0].RPCs[0].Status)
	assert.Equal(t, int64(100), report.Chains[0].RPCs[0].Height)
	assert.Contains(t, out.String(), "Configuration saved successfully.")

	saved, err := config.LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cosmoshub-4", saved.Chains[0].ChainID)
}

func TestRunCheck_DryRun(t *testing.T) {
	srv := newStatusRPC(t, "cosmoshub-4", 100)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := config.Default()
	cfg.Chains = []config.ChainConfig{testChain(srv.URL)}

	report := runCheck(context.Background(), cfg, path, checkOptions{DryRun: true, JSON: true}, &bytes.Buffer{})
	assert.True(t, report.ConfigUpdated)
	assert.True(t, report.DryRun)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunCheck_Inconsistent(t *testing.T) {
	a := newStatusRPC(t, "cosmoshub-4", 100)
	b := newStatusRPC(t, "theta-testnet-001", 50)

	cfg := config.Default()
	chain := testChain(a.URL, b.URL)
	chain.ChainID = "cosmoshub-4"
	cfg.Chains = []config.ChainConfig{chain}

	report := runCheck(context.Background(), cfg, "unused", checkOptions{JSON: true}, &bytes.Buffer{})
	assert.False(t, report.ConfigUpdated)
	assert.Equal(t, []string{chain.Name}, report.InconsistentChains)
	require.Len(t, report.Chains[0].RPCs, 2)
	assert.Empty(t, report.Chains[0].RPCs[0].Error)
	assert.Contains(t, report.Chains[0].RPCs[1].Error, "Mismatch")
}

func TestRunCheck_UnreachableRPC(t *testing.T) {
	srv := newStatusRPC(t, "cosmoshub-4", 1)
	url := srv.URL
	srv.Close()

	cfg := config.Default()
	chain := testChain(url)
	chain.ChainID = "cosmoshub-4"
	cfg.Chains = []config.ChainConfig{chain}

	report := runCheck(context.Background(), cfg, "unused", checkOptions{JSON: true}, &bytes.Buffer{})
	assert.True(t, report.ValidStructure)
	require.Len(t, report.Chains[0].RPCs, 1)
	assert.Equal(t, "error", report.Chains[0].RPCs[0].Status)
	assert.NotEmpty(t, report.Chains[0].RPCs[0].Error)
}

func TestRunCheck_InvalidStructure(t *testing.T) {
	cfg := config.Default()
	chain := testChain()
	chain.Name = " "
	cfg.Chains = []config.ChainConfig{chain}

	report := runCheck(context.Background(), cfg, "unused", checkOptions{JSON: true}, &bytes.Buffer{})
	assert.False(t, report.ValidStructure)
	assert.Len(t, report.StructureErrors, 2)
	assert.Empty(t, report.Chains)
}

func TestCheckCmd_JSON(t *testing.T) {
	srv := newStatusRPC(t, "cosmoshub-4", 7)
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := config.Default()
	chain := testChain(srv.URL)
	chain.ChainID = "cosmoshub-4"
	cfg.Chains = []config.ChainConfig{chain}
	require.NoError(t, config.SaveConfig(cfg, path))

	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "--json", "--config", path})
	require.NoError(t, root.Execute())

	var report models.TestReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, path, report.ConfigPath)
	assert.Equal(t, 1, report.ChainCount)
	assert.False(t, report.ConfigUpdated)
}

func TestCheckCmd_Restore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.Default()
	require.NoError(t, config.SaveConfig(cfg, path))
	original := cfg.Chains[0].Name

	cfg.Chains[0].Name = "Broken"
	require.NoError(t, config.SaveConfig(cfg, path))

	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "--restore", "--config", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Restored")

	restored, err := config.LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, restored.Chains[0].Name)
}

func TestCheckCmd_RestoreWithoutBackup(t *testing.T) {
	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"check", "--restore", "--config", filepath.Join(t.TempDir(), "config.json")})
	assert.Error(t, root.Execute())
}

func TestVersionCmd(t *testing.T) {
	Version = "1.2.3"
	t.Cleanup(func() { Version = "dev" })

	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "cosmterm version 1.2.3\n", out.String())
}

func TestServeCmd_InvalidUpstream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, config.SaveConfig(config.Default(), path))

	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "--config", path, "--no-watch", "--lcd-host", "ftp://nowhere"})
	assert.Error(t, root.Execute())
}
