package models

import (
	"time"
)

// Coin is an amount in a base (micro) denomination. Amount is an integer
// string, or a decimal string for reward and commission queries.
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// AccountInfo holds the auth module data needed to sign a transaction.
type AccountInfo struct {
	Address       string `json:"address"`
	AccountNumber uint64 `json:"account_number"`
	Sequence      uint64 `json:"sequence"`
}

// Delegation is a bonded stake from the tracked address to one validator.
type Delegation struct {
	ValidatorAddress string `json:"validator_address"`
	Shares           string `json:"shares"`
	Balance          Coin   `json:"balance"`
}

// UnbondingEntry is one pending unbond.
type UnbondingEntry struct {
	ValidatorAddress string    `json:"validator_address"`
	CreationHeight   int64     `json:"creation_height"`
	CompletionTime   time.Time `json:"completion_time"`
	Balance          string    `json:"balance"`
}

// Reward holds the pending rewards from one validator.
type Reward struct {
	ValidatorAddress string `json:"validator_address"`
	Reward           []Coin `json:"reward"`
}

// Validator is the subset of staking validator fields the terminal displays.
type Validator struct {
	OperatorAddress string `json:"operator_address"`
	Moniker         string `json:"moniker"`
	Website         string `json:"website,omitempty"`
	Tokens          string `json:"tokens"`
	CommissionRate  string `json:"commission_rate"`
	Status          string `json:"status"`
	Jailed          bool   `json:"jailed"`
}

// Portfolio is everything fetched for the tracked address.
type Portfolio struct {
	Address      string           `json:"address"`
	Balances     []Coin           `json:"balances"`
	Delegations  []Delegation     `json:"delegations"`
	Unbonding    []UnbondingEntry `json:"unbonding"`
	Rewards      []Reward         `json:"rewards"`
	TotalRewards []Coin           `json:"total_rewards"`
	FailedURLs   []string         `json:"failed_urls,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NodeStatus is the result of an RPC /status call.
type NodeStatus struct {
	ChainID         string    `json:"chain_id"`
	Moniker         string    `json:"moniker"`
	Version         string    `json:"version"`
	LatestHeight    int64     `json:"latest_height"`
	LatestBlockTime time.Time `json:"latest_block_time"`
	CatchingUp      bool      `json:"catching_up"`
	RPCURL          string    `json:"rpc_url"`
}

// BlockSummary is a block as shown in the explorer.
type BlockSummary struct {
	Height   int64     `json:"height"`
	Hash     string    `json:"hash"`
	ChainID  string    `json:"chain_id"`
	Time     time.Time `json:"time"`
	Proposer string    `json:"proposer"`
	TxCount  int       `json:"tx_count"`
	TxHashes []string  `json:"tx_hashes,omitempty"`
}

// NetworkOverview aggregates chain-wide staking figures. Every field is best
// effort; Mock is set when the values come from the fixture.
type NetworkOverview struct {
	BondedTokens     string    `json:"bonded_tokens"`
	NotBondedTokens  string    `json:"not_bonded_tokens"`
	ActiveValidators int       `json:"active_validators"`
	Inflation        string    `json:"inflation"`
	CommunityPool    []Coin    `json:"community_pool"`
	Mock             bool      `json:"mock"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TxResult is the outcome of a broadcast or tx lookup.
type TxResult struct {
	TxHash    string `json:"txhash"`
	Height    int64  `json:"height"`
	Code      uint32 `json:"code"`
	Codespace string `json:"codespace,omitempty"`
	RawLog    string `json:"raw_log"`
	GasUsed   int64  `json:"gas_used"`
}

// RPCLatencyData contains the result of a latency check.
type RPCLatencyData struct {
	RPCURL  string
	Latency time.Duration
	Err     error
}

// Contact is a chat peer.
type Contact struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// ChatMessage is one message exchanged with a peer.
type ChatMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Outgoing  bool      `json:"-"`
}

// ChainResult holds check results for a specific chain.
type ChainResult struct {
	Name            string      `json:"name"`
	ConfigChainID   string      `json:"config_chain_id"`
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	ChainIDUpdated  bool        `json:"chain_id_updated"`
	ObservedChainID string      `json:"observed_chain_id,omitempty"`
}

// RPCResult holds check results for a specific RPC URL.
type RPCResult struct {
	URL     string `json:"url"`
	Status  string `json:"status"` // "ok" or "error"
	ChainID string `json:"chain_id,omitempty"`
	Height  int64  `json:"height,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration check.
type TestReport struct {
	ConfigPath         string        `json:"config_path"`
	ValidStructure     bool          `json:"valid_structure"`
	StructureErrors    []string      `json:"structure_errors,omitempty"`
	ChainCount         int           `json:"chain_count"`
	ContactCount       int           `json:"contact_count"`
	Chains             []ChainResult `json:"chains,omitempty"`
	InconsistentChains []string      `json:"inconsistent_chains,omitempty"`
	ConfigUpdated      bool          `json:"config_updated"`
	SaveError          string        `json:"save_error,omitempty"`
	DryRun             bool          `json:"dry_run"`
}
