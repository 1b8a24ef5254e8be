// Package logging holds the zerolog setup and the field names shared by every
// component so log lines can be filtered consistently.
package logging

// Standard field names.
const (
	FieldComponent = "component"
	FieldChain     = "chain"
	FieldAddress   = "address"
	FieldURL       = "url"
	FieldTarget    = "target"
	FieldPath      = "path"
	FieldMethod    = "method"
	FieldStatus    = "status"
	FieldHeight    = "height"
	FieldTxHash    = "tx_hash"
	FieldLatency   = "latency"
	FieldAttempt   = "attempt"
	FieldCount     = "count"
	FieldPeer      = "peer"
	FieldListen    = "listen_addr"
	FieldEvent     = "event"
)

// Component names.
const (
	ComponentProxyServer = "proxy_server"
	ComponentWatcher     = "watcher"
	ComponentChainClient = "chain_client"
	ComponentWallet      = "wallet"
	ComponentChat        = "chat"
	ComponentTerminal    = "terminal"
	ComponentCheck       = "check"
)
