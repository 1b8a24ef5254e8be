package tui

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"cosmterm/pkg/chat"
	"cosmterm/pkg/config"
	"cosmterm/pkg/models"
	"cosmterm/pkg/rpc"
	"cosmterm/pkg/utils"
	"cosmterm/pkg/wallet"
	"cosmterm/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var errNoSession = errors.New("wallet not connected")

// sumDenom adds every coin of denom. Decimal amounts are truncated.
func sumDenom(coins []models.Coin, denom string) *big.Int {
	return lo.Reduce(coins, func(acc *big.Int, c models.Coin, _ int) *big.Int {
		if c.Denom != denom {
			return acc
		}
		if v, ok := utils.ParseMicroAmount(c.Amount); ok {
			acc.Add(acc, v)
		}
		return acc
	}, new(big.Int))
}

// totalDelegated sums the staked balance over all delegations.
func totalDelegated(p models.Portfolio, denom string) *big.Int {
	return sumDenom(lo.Map(p.Delegations, func(d models.Delegation, _ int) models.Coin {
		return d.Balance
	}), denom)
}

// totalUnbonding sums the pending unbonds.
func totalUnbonding(p models.Portfolio, denom string) *big.Int {
	return sumDenom(lo.Map(p.Unbonding, func(u models.UnbondingEntry, _ int) models.Coin {
		return models.Coin{Denom: denom, Amount: u.Balance}
	}), denom)
}

// rewardFrom returns the pending reward of denom from one validator.
func rewardFrom(p models.Portfolio, validator, denom string) *big.Int {
	r, ok := lo.Find(p.Rewards, func(r models.Reward) bool {
		return r.ValidatorAddress == validator
	})
	if !ok {
		return new(big.Int)
	}
	return sumDenom(r.Reward, denom)
}

// monikerOf resolves an operator address to its moniker, falling back to a
// truncated address.
func monikerOf(vals []models.Validator, operator string) string {
	v, ok := lo.Find(vals, func(v models.Validator) bool {
		return v.OperatorAddress == operator
	})
	if ok && v.Moniker != "" {
		return v.Moniker
	}
	return utils.TruncateMiddle(operator, 20)
}

func valoperPrefix(chain config.ChainConfig) string {
	return chain.Bech32Prefix + "valoper"
}

func buildSendMsgs(s *wallet.Session, to, amount string) ([]wallet.Msg, error) {
	if s == nil {
		return nil, errNoSession
	}
	to = strings.TrimSpace(to)
	if err := wallet.ValidateAddress(to, s.Chain.Bech32Prefix); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	v, err := utils.ParseDisplayAmount(amount)
	if err != nil {
		return nil, err
	}
	return []wallet.Msg{wallet.MsgSend{
		FromAddress: s.Address(),
		ToAddress:   to,
		Amount:      []models.Coin{{Denom: s.Chain.Denom, Amount: v.String()}},
	}}, nil
}

func buildStakeMsgs(s *wallet.Session, validator, amount string, undelegate bool) ([]wallet.Msg, error) {
	if s == nil {
		return nil, errNoSession
	}
	validator = strings.TrimSpace(validator)
	if err := wallet.ValidateAddress(validator, valoperPrefix(s.Chain)); err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	v, err := utils.ParseDisplayAmount(amount)
	if err != nil {
		return nil, err
	}
	coin := models.Coin{Denom: s.Chain.Denom, Amount: v.String()}
	if undelegate {
		return []wallet.Msg{wallet.MsgUndelegate{DelegatorAddress: s.Address(), ValidatorAddress: validator, Amount: coin}}, nil
	}
	return []wallet.Msg{wallet.MsgDelegate{DelegatorAddress: s.Address(), ValidatorAddress: validator, Amount: coin}}, nil
}

// buildClaimAll withdraws from every validator with a pending reward.
func buildClaimAll(s *wallet.Session, p models.Portfolio) ([]wallet.Msg, error) {
	if s == nil {
		return nil, errNoSession
	}
	msgs := lo.FilterMap(p.Rewards, func(r models.Reward, _ int) (wallet.Msg, bool) {
		if sumDenom(r.Reward, s.Chain.Denom).Sign() == 0 {
			return nil, false
		}
		return wallet.MsgWithdrawDelegatorReward{DelegatorAddress: s.Address(), ValidatorAddress: r.ValidatorAddress}, true
	})
	if len(msgs) == 0 {
		return nil, errors.New("no rewards to claim")
	}
	return msgs, nil
}

func explorerURL(chain config.ChainConfig, kind, id string) (string, error) {
	if chain.ExplorerURL == "" {
		return "", errors.New("explorer URL not configured for this chain")
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(chain.ExplorerURL, "/"), kind, id), nil
}

// --- Commands ---

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func listenForChat(ch <-chan models.ChatMessage) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return chatIncomingMsg(msg)
	}
}

func connectWalletCmd(ctx context.Context, p wallet.Provider, chain config.ChainConfig, g config.GlobalConfig, logger zerolog.Logger) tea.Cmd {
	return func() tea.Msg {
		s, err := wallet.Connect(ctx, p, chain, wallet.DetectOptionsFromConfig(g), logger)
		return walletConnectedMsg{session: s, err: err}
	}
}

func broadcastCmd(ctx context.Context, s *wallet.Session, action string, msgs []wallet.Msg) tea.Cmd {
	return func() tea.Msg {
		res, err := wallet.SignAndBroadcast(ctx, s, msgs, wallet.FeeForChain(s.Chain), "")
		return txResultMsg{action: action, result: res, err: err}
	}
}

func fetchBlockCmd(ctx context.Context, chain config.ChainConfig, height int64) tea.Cmd {
	return func() tea.Msg {
		b, _, err := rpc.FetchBlock(ctx, chain, height)
		return blockDetailMsg{block: b, err: err}
	}
}

func checkRPCLatencyCmd(ctx context.Context, urls []string) tea.Cmd {
	cmds := lo.Map(urls, func(u string, _ int) tea.Cmd {
		return func() tea.Msg {
			data, _ := rpc.FetchRPCLatency(ctx, u)
			return data
		}
	})
	return tea.Batch(cmds...)
}

func sendChatCmd(ctx context.Context, d *chat.DaemonClient, to, body string) tea.Cmd {
	return func() tea.Msg {
		msg, err := d.Send(ctx, to, body)
		return chatSentMsg{msg: msg, err: err}
	}
}

func saveConfigCmd(cfg *config.Config, path string) tea.Cmd {
	return func() tea.Msg {
		return configSavedMsg{err: config.SaveConfig(cfg, path)}
	}
}
