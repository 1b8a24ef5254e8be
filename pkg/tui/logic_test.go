package tui

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"cosmterm/pkg/chat"
	"cosmterm/pkg/config"
	"cosmterm/pkg/models"
	"cosmterm/pkg/wallet"
	"cosmterm/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(t *testing.T, seed, prefix string) string {
	t.Helper()
	a, err := wallet.PubKeyToAddress([]byte(seed), prefix)
	require.NoError(t, err)
	return a
}

func testSession(t *testing.T) *wallet.Session {
	chain := config.DefaultChain()
	return &wallet.Session{Chain: chain, Key: wallet.Key{Name: "test", Address: addr(t, "me", "cosmos")}}
}

func testModel(t *testing.T) model {
	t.Helper()
	cfg := config.Default()
	w := watcher.NewWatcher(cfg.ActiveChain(), "", cfg.Global, zerolog.Nop())
	m := initialModel(context.Background(), Options{Watcher: w, Config: cfg, Logger: zerolog.Nop()})
	t.Cleanup(func() { w.Unsubscribe(m.sub) })
	return m
}

func samplePortfolio() models.Portfolio {
	return models.Portfolio{
		Delegations: []models.Delegation{
			{ValidatorAddress: "valA", Balance: models.Coin{Denom: "uatom", Amount: "1500000"}},
			{ValidatorAddress: "valB", Balance: models.Coin{Denom: "uatom", Amount: "500000"}},
			{ValidatorAddress: "valC", Balance: models.Coin{Denom: "uosmo", Amount: "999"}},
		},
		Unbonding: []models.UnbondingEntry{
			{ValidatorAddress: "valA", Balance: "250000"},
		},
		Rewards: []models.Reward{
			{ValidatorAddress: "valA", Reward: []models.Coin{{Denom: "uatom", Amount: "1234.567"}}},
			{ValidatorAddress: "valB", Reward: []models.Coin{{Denom: "uatom", Amount: "0.4"}}},
		},
	}
}

func TestStakingTotals(t *testing.T) {
	p := samplePortfolio()

	assert.Equal(t, big.NewInt(2000000), totalDelegated(p, "uatom"))
	assert.Equal(t, big.NewInt(250000), totalUnbonding(p, "uatom"))
	assert.Equal(t, big.NewInt(1234), rewardFrom(p, "valA", "uatom"))
	assert.Equal(t, big.NewInt(0), rewardFrom(p, "valZ", "uatom"))
}

func TestMonikerOf(t *testing.T) {
	vals := []models.Validator{
		{OperatorAddress: "valA", Moniker: "Alpha"},
		{OperatorAddress: "valB"},
	}
	assert.Equal(t, "Alpha", monikerOf(vals, "valA"))
	assert.Equal(t, "valB", monikerOf(vals, "valB"))
}

func TestBuildSendMsgs(t *testing.T) {
	s := testSession(t)
	to := addr(t, "bob", "cosmos")

	msgs, err := buildSendMsgs(s, to, "1.5")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	send, ok := msgs[0].(wallet.MsgSend)
	require.True(t, ok)
	assert.Equal(t, s.Address(), send.FromAddress)
	assert.Equal(t, to, send.ToAddress)
	assert.Equal(t, []models.Coin{{Denom: "uatom", Amount: "1500000"}}, send.Amount)

	_, err = buildSendMsgs(s, addr(t, "bob", "osmo"), "1")
	assert.Error(t, err)
	_, err = buildSendMsgs(s, to, "0")
	assert.Error(t, err)
	_, err = buildSendMsgs(nil, to, "1")
	assert.ErrorIs(t, err, errNoSession)
}

func TestBuildStakeMsgs(t *testing.T) {
	s := testSession(t)
	val := addr(t, "validator", "cosmosvaloper")

	msgs, err := buildStakeMsgs(s, val, "2", false)
	require.NoError(t, err)
	d, ok := msgs[0].(wallet.MsgDelegate)
	require.True(t, ok)
	assert.Equal(t, val, d.ValidatorAddress)
	assert.Equal(t, "2000000", d.Amount.Amount)

	msgs, err = buildStakeMsgs(s, val, "0.000001", true)
	require.NoError(t, err)
	u, ok := msgs[0].(wallet.MsgUndelegate)
	require.True(t, ok)
	assert.Equal(t, "1", u.Amount.Amount)

	_, err = buildStakeMsgs(s, addr(t, "validator", "cosmos"), "1", false)
	assert.Error(t, err)
}

func TestBuildClaimAll(t *testing.T) {
	s := testSession(t)

	msgs, err := buildClaimAll(s, samplePortfolio())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "valA", msgs[0].(wallet.MsgWithdrawDelegatorReward).ValidatorAddress)

	_, err = buildClaimAll(s, models.Portfolio{})
	assert.Error(t, err)
}

func TestExplorerURL(t *testing.T) {
	chain := config.DefaultChain()
	chain.ExplorerURL = "https://explorer.example/cosmos/"
	u, err := explorerURL(chain, "block", "42")
	require.NoError(t, err)
	assert.Equal(t, "https://explorer.example/cosmos/block/42", u)

	chain.ExplorerURL = ""
	_, err = explorerURL(chain, "block", "42")
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	assert.InDelta(t, 5.0, commissionPercent("0.050000000000000000"), 1e-9)
	assert.Equal(t, 0.0, commissionPercent("bad"))
	assert.Equal(t, "13.25%", formatInflation("0.1325"))
	assert.Equal(t, "-", formatInflation(""))
	assert.Equal(t, "", sparkline(nil))
	assert.Contains(t, sparkline([]time.Duration{time.Millisecond, -1, 2 * time.Millisecond}), "×")
}

func TestPrivacyMasking(t *testing.T) {
	m := model{chain: config.DefaultChain()}
	assert.Equal(t, "1.500000", m.displayAmount("1500000"))
	m.privacyMode = true
	assert.Equal(t, "****", m.displayAmount("1500000"))
	assert.Equal(t, "cosmos1**...**", m.maskAddress("cosmos1abc"))
}

func TestUpdateSwitchesViews(t *testing.T) {
	m := testModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, viewStaking, next.(model).view)

	next, _ = next.(model).Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	next, _ = next.(model).Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, viewNetwork, next.(model).view)
}

func TestUpdateAppliesWatcherEvents(t *testing.T) {
	m := testModel(t)

	next, cmd := m.Update(watcher.Event{Type: watcher.EventStatusUpdated, Data: models.NodeStatus{ChainID: "cosmoshub-4", LatestHeight: 10}})
	assert.NotNil(t, cmd)
	got := next.(model)
	assert.Equal(t, int64(10), got.status.LatestHeight)
	assert.False(t, got.loading)

	p := samplePortfolio()
	next, _ = got.Update(watcher.Event{Type: watcher.EventPortfolioUpdated, Data: p})
	got = next.(model)
	require.NotNil(t, got.portfolio)
	assert.Len(t, got.portfolio.Delegations, 3)

	next, _ = got.Update(watcher.Event{Type: watcher.EventError, Data: watcher.ErrorData{Source: "overview", Message: "down", Mock: true}})
	got = next.(model)
	require.NotNil(t, got.lastError)
	assert.Equal(t, "overview", got.lastError.Source)
}

func TestUpdateLatencyHistory(t *testing.T) {
	m := testModel(t)
	url := "https://rpc.example"

	var next tea.Model = m
	for i := 0; i < latencyHistoryLen+5; i++ {
		next, _ = next.(model).Update(models.RPCLatencyData{RPCURL: url, Latency: time.Duration(i) * time.Millisecond})
	}
	next, _ = next.(model).Update(models.RPCLatencyData{RPCURL: url, Err: errors.New("timeout")})
	got := next.(model)

	assert.Len(t, got.rpcLatencyHistory[url], latencyHistoryLen)
	assert.Equal(t, time.Duration(-1), got.rpcLatencies[url])
}

func TestStatusToastClears(t *testing.T) {
	m := testModel(t)
	cmd := m.toast("hello")
	assert.NotNil(t, cmd)
	assert.Equal(t, "hello", m.statusMessage)

	next, _ := m.Update(clearStatusMsg{})
	assert.Empty(t, next.(model).statusMessage)
}

func TestSendFormRequiresSession(t *testing.T) {
	m := testModel(t)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	got := next.(model)
	assert.Equal(t, formNone, got.form)
	assert.NotEmpty(t, got.statusMessage)

	got.session = testSession(t)
	next, _ = got.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	got = next.(model)
	assert.Equal(t, formSend, got.form)
	assert.Len(t, got.formInputs, 2)

	next, _ = got.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, formNone, next.(model).form)
}

func TestAddContactForm(t *testing.T) {
	m := testModel(t)
	m.view = viewChat
	peer := addr(t, "carol", "cosmos")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	got := next.(model)
	require.Equal(t, formAddContact, got.form)

	got.formInputs[0].SetValue(peer)
	got.formInputs[1].SetValue("Carol")
	next, _ = got.Update(tea.KeyMsg{Type: tea.KeyEnter})
	next, _ = next.(model).Update(tea.KeyMsg{Type: tea.KeyEnter})
	got = next.(model)

	assert.Equal(t, formNone, got.form)
	c, ok := got.book.Contact(peer)
	require.True(t, ok)
	assert.Equal(t, "Carol", c.Name)
}

func TestComposeWithoutDaemonStoresLocally(t *testing.T) {
	m := testModel(t)
	peer := addr(t, "dave", "cosmos")
	require.NoError(t, m.book.AddContact(models.Contact{Address: peer, Name: "Dave"}))
	m.daemon = chat.NewDaemonClient("", addr(t, "me", "cosmos"), m.book, zerolog.Nop())
	require.NoError(t, m.daemon.Connect(context.Background()))
	m.view = viewChat

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := next.(model)
	require.Equal(t, formCompose, got.form)

	got.formInputs[0].SetValue("hello")
	next, cmd := got.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	sent, ok := cmd().(chatSentMsg)
	require.True(t, ok)
	require.NoError(t, sent.err)

	next, _ = next.(model).Update(sent)
	hist := next.(model).book.History(peer)
	require.Len(t, hist, 1)
	assert.Equal(t, "hello", hist[0].Body)
	assert.False(t, m.daemon.Online())
}
