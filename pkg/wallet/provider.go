// Package wallet connects the terminal to a signing wallet. A Provider is
// anything that can expose a key for a chain and sign amino sign docs; the
// package ships an in-process LocalProvider backed by a secp256k1 key.
package wallet

import (
	"context"
	"errors"

	"cosmterm/pkg/models"
)

var (
	// ErrWalletNotFound is returned when detection gives up.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrEnableRejected is returned when the wallet refuses to enable a chain.
	ErrEnableRejected = errors.New("wallet rejected chain enable")

	// ErrKeyUnavailable is returned when the wallet has no usable key for a chain.
	ErrKeyUnavailable = errors.New("wallet key unavailable")

	// ErrSigningRejected is returned when the wallet refuses to sign.
	ErrSigningRejected = errors.New("signing rejected")
)

// Key is the public half of a wallet account.
type Key struct {
	Name    string `json:"name"`
	Algo    string `json:"algo"`
	PubKey  []byte `json:"pub_key"`
	Address string `json:"bech32_address"`
}

// Provider is the contract every wallet backend implements.
type Provider interface {
	Name() string
	// Available reports whether the wallet is present. Detect polls it.
	Available(ctx context.Context) bool
	Enable(ctx context.Context, chainID string) error
	GetKey(ctx context.Context, chainID string) (Key, error)
	SignAmino(ctx context.Context, chainID, signer string, doc StdSignDoc) (SignResponse, error)
}

// StdFee is the amino JSON fee. Gas is a decimal string.
type StdFee struct {
	Amount []models.Coin `json:"amount"`
	Gas    string        `json:"gas"`
}

// AminoMsg is a message in its amino JSON form.
type AminoMsg struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// StdSignDoc is the legacy amino sign document.
type StdSignDoc struct {
	AccountNumber string     `json:"account_number"`
	ChainID       string     `json:"chain_id"`
	Fee           StdFee     `json:"fee"`
	Memo          string     `json:"memo"`
	Msgs          []AminoMsg `json:"msgs"`
	Sequence      string     `json:"sequence"`
}

// PubKeyJSON is the amino JSON public key.
type PubKeyJSON struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// StdSignature carries a base64 64-byte r||s signature.
type StdSignature struct {
	PubKey    PubKeyJSON `json:"pub_key"`
	Signature string     `json:"signature"`
}

// SignResponse is what a wallet returns from SignAmino. Signed may differ
// from the requested doc if the wallet let the user adjust fee or memo.
type SignResponse struct {
	Signed    StdSignDoc   `json:"signed"`
	Signature StdSignature `json:"signature"`
}
