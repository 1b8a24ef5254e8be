package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmterm/pkg/config"
	"cosmterm/pkg/logging"
	"cosmterm/pkg/models"
	"cosmterm/pkg/rpc"

	"github.com/rs/zerolog"
)

// Session is a connected wallet on one chain.
type Session struct {
	Provider    Provider
	Chain       config.ChainConfig
	Key         Key
	Balances    []models.Coin
	BalanceErr  error
	ConnectedAt time.Time
}

// Address is the bech32 address of the connected key.
func (s *Session) Address() string {
	return s.Key.Address
}

// Connect detects the wallet, enables the chain, reads the key and fetches
// its balance. A balance failure does not fail the connect; it is kept on the
// session for display.
func Connect(ctx context.Context, p Provider, chain config.ChainConfig, opts DetectOptions, logger zerolog.Logger) (*Session, error) {
	log := logging.WithChain(logging.ForComponent(logger, logging.ComponentWallet), chain.Name)

	if err := Detect(ctx, p, opts); err != nil {
		log.Warn().Err(err).Str("provider", p.Name()).Msg("Wallet detection failed")
		return nil, fmt.Errorf("detect: %w", err)
	}

	chainID := chain.ChainID
	if err := p.Enable(ctx, chainID); err != nil {
		if !errors.Is(err, ErrEnableRejected) {
			err = fmt.Errorf("%w: %w", ErrEnableRejected, err)
		}
		return nil, fmt.Errorf("enable %s: %w", chainID, err)
	}

	key, err := p.GetKey(ctx, chainID)
	if err != nil {
		if !errors.Is(err, ErrKeyUnavailable) {
			err = fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
		}
		return nil, fmt.Errorf("get key: %w", err)
	}
	if err := ValidateAddress(key.Address, chain.Bech32Prefix); err != nil {
		return nil, fmt.Errorf("get key: %w: %w", ErrKeyUnavailable, err)
	}

	s := &Session{Provider: p, Chain: chain, Key: key, ConnectedAt: time.Now()}
	balances, failed, err := rpc.FetchBalances(ctx, chain, key.Address)
	if err != nil {
		s.BalanceErr = err
		log.Warn().Err(err).Strs("failed_urls", failed).Str(logging.FieldAddress, key.Address).Msg("Balance fetch failed")
	} else {
		s.Balances = balances
	}

	log.Info().Str(logging.FieldAddress, key.Address).Str("provider", p.Name()).Msg("Wallet connected")
	return s, nil
}
