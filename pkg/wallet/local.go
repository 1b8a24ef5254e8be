package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	"cosmterm/pkg/config"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

const (
	algoSecp256k1     = "secp256k1"
	aminoPubKeyType   = "tendermint/PubKeySecp256k1"
	localProviderName = "local"
)

// PubKeyToAddress derives the bech32 account address of a compressed
// secp256k1 public key.
func PubKeyToAddress(pubKey []byte, prefix string) (string, error) {
	sha := sha256.Sum256(pubKey)
	h := ripemd160.New()
	_, _ = h.Write(sha[:])
	conv, err := bech32.ConvertBits(h.Sum(nil), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, conv)
}

// ValidateAddress checks that addr is bech32 with the given prefix and a 20
// or 32 byte payload.
func ValidateAddress(addr, prefix string) error {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if hrp != prefix {
		return fmt.Errorf("invalid address %q: prefix %q, want %q", addr, hrp, prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if len(raw) != 20 && len(raw) != 32 {
		return fmt.Errorf("invalid address %q: %d byte payload", addr, len(raw))
	}
	return nil
}

// LocalProvider signs in-process with a secp256k1 private key. Without a key
// it reports itself unavailable.
type LocalProvider struct {
	prefix string
	key    *ecdsa.PrivateKey

	mu      sync.Mutex
	enabled map[string]bool
}

// NewLocalProvider parses a hex private key, with or without 0x.
func NewLocalProvider(hexKey, prefix string) (*LocalProvider, error) {
	p := &LocalProvider{prefix: prefix, enabled: make(map[string]bool)}
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return p, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	p.key = key
	return p, nil
}

// LocalProviderFromConfig loads the key from the wallet key file, falling back
// to the COSMTERM_PRIVATE_KEY environment variable.
func LocalProviderFromConfig(w config.WalletConfig, prefix string) (*LocalProvider, error) {
	hexKey := os.Getenv(config.PrivateKeyEnv)
	if w.KeyFile != "" {
		data, err := os.ReadFile(w.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		hexKey = string(data)
	}
	return NewLocalProvider(hexKey, prefix)
}

func (p *LocalProvider) Name() string { return localProviderName }

func (p *LocalProvider) Available(ctx context.Context) bool {
	return p.key != nil
}

func (p *LocalProvider) Enable(ctx context.Context, chainID string) error {
	if p.key == nil {
		return ErrWalletNotFound
	}
	p.mu.Lock()
	p.enabled[chainID] = true
	p.mu.Unlock()
	return nil
}

func (p *LocalProvider) isEnabled(chainID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled[chainID]
}

func (p *LocalProvider) GetKey(ctx context.Context, chainID string) (Key, error) {
	if p.key == nil || !p.isEnabled(chainID) {
		return Key{}, fmt.Errorf("%w: chain %s not enabled", ErrKeyUnavailable, chainID)
	}
	pub := crypto.CompressPubkey(&p.key.PublicKey)
	addr, err := PubKeyToAddress(pub, p.prefix)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	return Key{Name: localProviderName, Algo: algoSecp256k1, PubKey: pub, Address: addr}, nil
}

func (p *LocalProvider) SignAmino(ctx context.Context, chainID, signer string, doc StdSignDoc) (SignResponse, error) {
	key, err := p.GetKey(ctx, chainID)
	if err != nil {
		return SignResponse{}, err
	}
	if signer != key.Address {
		return SignResponse{}, fmt.Errorf("%w: signer %s is not %s", ErrSigningRejected, signer, key.Address)
	}
	if doc.ChainID != chainID {
		return SignResponse{}, fmt.Errorf("%w: doc chain %s, want %s", ErrSigningRejected, doc.ChainID, chainID)
	}

	signBytes, err := doc.SortedJSON()
	if err != nil {
		return SignResponse{}, err
	}
	digest := sha256.Sum256(signBytes)
	sig, err := crypto.Sign(digest[:], p.key)
	if err != nil {
		return SignResponse{}, fmt.Errorf("%w: %w", ErrSigningRejected, err)
	}

	return SignResponse{
		Signed: doc,
		Signature: StdSignature{
			PubKey: PubKeyJSON{
				Type:  aminoPubKeyType,
				Value: base64.StdEncoding.EncodeToString(key.PubKey),
			},
			// Drop the recovery byte.
			Signature: base64.StdEncoding.EncodeToString(sig[:64]),
		},
	}, nil
}
