package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"time"

	"cosmterm/pkg/config"
	"cosmterm/pkg/models"
)

// Bond statuses accepted by FetchValidators.
const (
	StatusBonded    = "BOND_STATUS_BONDED"
	StatusUnbonding = "BOND_STATUS_UNBONDING"
	StatusUnbonded  = "BOND_STATUS_UNBONDED"
)

// FetchBalances returns all bank balances of address.
func FetchBalances(ctx context.Context, chain config.ChainConfig, address string) ([]models.Coin, []string, error) {
	var resp struct {
		Balances []models.Coin `json:"balances"`
	}
	failed, err := withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/bank/v1beta1/balances/"+url.PathEscape(address), nil, &resp)
	})
	if err != nil {
		return nil, failed, err
	}
	return resp.Balances, failed, nil
}

// FetchDelegations returns the address's delegations.
func FetchDelegations(ctx context.Context, chain config.ChainConfig, address string) ([]models.Delegation, []string, error) {
	var resp struct {
		DelegationResponses []struct {
			Delegation struct {
				ValidatorAddress string `json:"validator_address"`
				Shares           string `json:"shares"`
			} `json:"delegation"`
			Balance models.Coin `json:"balance"`
		} `json:"delegation_responses"`
	}
	failed, err := withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/staking/v1beta1/delegations/"+url.PathEscape(address), nil, &resp)
	})
	if err != nil {
		return nil, failed, err
	}
	out := make([]models.Delegation, 0, len(resp.DelegationResponses))
	for _, d := range resp.DelegationResponses {
		out = append(out, models.Delegation{
			ValidatorAddress: d.Delegation.ValidatorAddress,
			Shares:           d.Delegation.Shares,
			Balance:          d.Balance,
		})
	}
	return out, failed, nil
}

// FetchUnbonding returns the address's pending unbonding entries, flattened.
func FetchUnbonding(ctx context.Context, chain config.ChainConfig, address string) ([]models.UnbondingEntry, []string, error) {
	var resp struct {
		UnbondingResponses []struct {
			ValidatorAddress string `json:"validator_address"`
			Entries          []struct {
				CreationHeight string    `json:"creation_height"`
				CompletionTime time.Time `json:"completion_time"`
				Balance        string    `json:"balance"`
			} `json:"entries"`
		} `json:"unbonding_responses"`
	}
	path := fmt.Sprintf("/cosmos/staking/v1beta1/delegators/%s/unbonding_delegations", url.PathEscape(address))
	failed, err := withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, path, nil, &resp)
	})
	if err != nil {
		return nil, failed, err
	}
	var out []models.UnbondingEntry
	for _, u := range resp.UnbondingResponses {
		for _, e := range u.Entries {
			h, _ := strconv.ParseInt(e.CreationHeight, 10, 64)
			out = append(out, models.UnbondingEntry{
				ValidatorAddress: u.ValidatorAddress,
				CreationHeight:   h,
				CompletionTime:   e.CompletionTime,
				Balance:          e.Balance,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletionTime.Before(out[j].CompletionTime) })
	return out, failed, nil
}

// FetchRewards returns pending rewards per validator and their total.
func FetchRewards(ctx context.Context, chain config.ChainConfig, address string) ([]models.Reward, []models.Coin, []string, error) {
	var resp struct {
		Rewards []models.Reward `json:"rewards"`
		Total   []models.Coin   `json:"total"`
	}
	path := fmt.Sprintf("/cosmos/distribution/v1beta1/delegators/%s/rewards", url.PathEscape(address))
	failed, err := withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, path, nil, &resp)
	})
	if err != nil {
		return nil, nil, failed, err
	}
	return resp.Rewards, resp.Total, failed, nil
}

// FetchPortfolio fetches balances, delegations, unbonding entries and rewards.
// Only a balance failure is fatal; the staking queries fail soft so a chain
// without the distribution module still shows a balance.
func FetchPortfolio(ctx context.Context, chain config.ChainConfig, address string) (models.Portfolio, error) {
	p := models.Portfolio{Address: address, UpdatedAt: time.Now()}

	balances, failed, err := FetchBalances(ctx, chain, address)
	p.FailedURLs = append(p.FailedURLs, failed...)
	if err != nil {
		return p, fmt.Errorf("balances: %w", err)
	}
	p.Balances = balances

	if dels, failed, err := FetchDelegations(ctx, chain, address); err == nil {
		p.Delegations = dels
	} else {
		p.FailedURLs = append(p.FailedURLs, failed...)
	}
	if ub, failed, err := FetchUnbonding(ctx, chain, address); err == nil {
		p.Unbonding = ub
	} else {
		p.FailedURLs = append(p.FailedURLs, failed...)
	}
	if rewards, total, failed, err := FetchRewards(ctx, chain, address); err == nil {
		p.Rewards = rewards
		p.TotalRewards = total
	} else {
		p.FailedURLs = append(p.FailedURLs, failed...)
	}
	return p, nil
}

type lcdValidator struct {
	OperatorAddress string `json:"operator_address"`
	Jailed          bool   `json:"jailed"`
	Status          string `json:"status"`
	Tokens          string `json:"tokens"`
	Description     struct {
		Moniker string `json:"moniker"`
		Website string `json:"website"`
	} `json:"description"`
	Commission struct {
		CommissionRates struct {
			Rate string `json:"rate"`
		} `json:"commission_rates"`
	} `json:"commission"`
}

// FetchValidators returns validators with the given bond status (all when
// empty), sorted by tokens descending.
func FetchValidators(ctx context.Context, chain config.ChainConfig, status string) ([]models.Validator, []string, error) {
	q := url.Values{}
	q.Set("pagination.limit", "200")
	if status != "" {
		q.Set("status", status)
	}
	var resp struct {
		Validators []lcdValidator `json:"validators"`
	}
	failed, err := withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/staking/v1beta1/validators", q, &resp)
	})
	if err != nil {
		return nil, failed, err
	}
	out := make([]models.Validator, 0, len(resp.Validators))
	for _, v := range resp.Validators {
		out = append(out, models.Validator{
			OperatorAddress: v.OperatorAddress,
			Moniker:         v.Description.Moniker,
			Website:         v.Description.Website,
			Tokens:          v.Tokens,
			CommissionRate:  v.Commission.CommissionRates.Rate,
			Status:          v.Status,
			Jailed:          v.Jailed,
		})
	}
	SortValidatorsByTokens(out)
	return out, failed, nil
}

// SortValidatorsByTokens orders validators by voting power, largest first.
func SortValidatorsByTokens(vals []models.Validator) {
	sort.SliceStable(vals, func(i, j int) bool {
		a, okA := new(big.Int).SetString(vals[i].Tokens, 10)
		b, okB := new(big.Int).SetString(vals[j].Tokens, 10)
		if !okA || !okB {
			return okA
		}
		return a.Cmp(b) > 0
	})
}

// FetchAccount returns the account number and sequence for address. Vesting
// accounts carry the base account one or two levels down.
func FetchAccount(ctx context.Context, chain config.ChainConfig, address string) (models.AccountInfo, error) {
	var resp struct {
		Account json.RawMessage `json:"account"`
	}
	_, err := withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/auth/v1beta1/accounts/"+url.PathEscape(address), nil, &resp)
	})
	if err != nil {
		return models.AccountInfo{}, err
	}
	return parseAccount(resp.Account)
}

type baseAccount struct {
	Address       string `json:"address"`
	AccountNumber string `json:"account_number"`
	Sequence      string `json:"sequence"`
}

func parseAccount(raw json.RawMessage) (models.AccountInfo, error) {
	var acc struct {
		baseAccount
		BaseAccount        *baseAccount `json:"base_account"`
		BaseVestingAccount *struct {
			BaseAccount *baseAccount `json:"base_account"`
		} `json:"base_vesting_account"`
	}
	if err := json.Unmarshal(raw, &acc); err != nil {
		return models.AccountInfo{}, fmt.Errorf("decode account: %w", err)
	}

	base := &acc.baseAccount
	switch {
	case acc.BaseVestingAccount != nil && acc.BaseVestingAccount.BaseAccount != nil:
		base = acc.BaseVestingAccount.BaseAccount
	case acc.BaseAccount != nil:
		base = acc.BaseAccount
	}
	if base.Address == "" {
		return models.AccountInfo{}, fmt.Errorf("decode account: no base account")
	}

	num, err := parseUint(base.AccountNumber)
	if err != nil {
		return models.AccountInfo{}, fmt.Errorf("account_number: %w", err)
	}
	seq, err := parseUint(base.Sequence)
	if err != nil {
		return models.AccountInfo{}, fmt.Errorf("sequence: %w", err)
	}
	return models.AccountInfo{Address: base.Address, AccountNumber: num, Sequence: seq}, nil
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// FetchNetworkOverview gathers staking pool, inflation, community pool and the
// bonded validator count. Each query is independent; the call only fails when
// all of them do.
func FetchNetworkOverview(ctx context.Context, chain config.ChainConfig) (models.NetworkOverview, []string, error) {
	ov := models.NetworkOverview{UpdatedAt: time.Now()}
	var failed []string
	var lastErr error
	succeeded := 0

	record := func(f []string, err error) bool {
		failed = append(failed, f...)
		if err != nil {
			lastErr = err
			return false
		}
		succeeded++
		return true
	}

	var pool struct {
		Pool struct {
			NotBondedTokens string `json:"not_bonded_tokens"`
			BondedTokens    string `json:"bonded_tokens"`
		} `json:"pool"`
	}
	if record(withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/staking/v1beta1/pool", nil, &pool)
	})) {
		ov.BondedTokens = pool.Pool.BondedTokens
		ov.NotBondedTokens = pool.Pool.NotBondedTokens
	}

	var inflation struct {
		Inflation string `json:"inflation"`
	}
	if record(withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/mint/v1beta1/inflation", nil, &inflation)
	})) {
		ov.Inflation = inflation.Inflation
	}

	var community struct {
		Pool []models.Coin `json:"pool"`
	}
	if record(withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/distribution/v1beta1/community_pool", nil, &community)
	})) {
		ov.CommunityPool = community.Pool
	}

	var count struct {
		Pagination struct {
			Total string `json:"total"`
		} `json:"pagination"`
	}
	q := url.Values{}
	q.Set("status", StatusBonded)
	q.Set("pagination.limit", "1")
	q.Set("pagination.count_total", "true")
	if record(withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/staking/v1beta1/validators", q, &count)
	})) {
		n, _ := strconv.Atoi(count.Pagination.Total)
		ov.ActiveValidators = n
	}

	if succeeded == 0 {
		return ov, failed, lastErr
	}
	return ov, failed, nil
}
