package watcher

import (
	"context"
	"sync"
	"time"

	"cosmterm/pkg/config"
	"cosmterm/pkg/fixtures"
	"cosmterm/pkg/logging"
	"cosmterm/pkg/models"
	"cosmterm/pkg/rpc"

	"github.com/rs/zerolog"
)

const (
	defaultStatusInterval  = 10 * time.Second
	defaultNetworkInterval = 30 * time.Second
	defaultAccountInterval = 30 * time.Second
	defaultRecentBlocks    = 10

	fetchTimeout = 20 * time.Second
)

// DataSource defines the interface for fetching data.
type DataSource interface {
	FetchStatus(ctx context.Context, chain config.ChainConfig) (models.NodeStatus, []string, error)
	FetchRecentBlocks(ctx context.Context, chain config.ChainConfig, n int) ([]models.BlockSummary, []string, error)
	FetchNetworkOverview(ctx context.Context, chain config.ChainConfig) (models.NetworkOverview, []string, error)
	FetchValidators(ctx context.Context, chain config.ChainConfig, status string) ([]models.Validator, []string, error)
	FetchPortfolio(ctx context.Context, chain config.ChainConfig, address string) (models.Portfolio, error)
}

// RealDataSource implements DataSource using the rpc package.
type RealDataSource struct{}

func (d *RealDataSource) FetchStatus(ctx context.Context, chain config.ChainConfig) (models.NodeStatus, []string, error) {
	return rpc.FetchStatus(ctx, chain)
}

func (d *RealDataSource) FetchRecentBlocks(ctx context.Context, chain config.ChainConfig, n int) ([]models.BlockSummary, []string, error) {
	return rpc.FetchRecentBlocks(ctx, chain, n)
}

func (d *RealDataSource) FetchNetworkOverview(ctx context.Context, chain config.ChainConfig) (models.NetworkOverview, []string, error) {
	return rpc.FetchNetworkOverview(ctx, chain)
}

func (d *RealDataSource) FetchValidators(ctx context.Context, chain config.ChainConfig, status string) ([]models.Validator, []string, error) {
	return rpc.FetchValidators(ctx, chain, status)
}

func (d *RealDataSource) FetchPortfolio(ctx context.Context, chain config.ChainConfig, address string) (models.Portfolio, error) {
	return rpc.FetchPortfolio(ctx, chain, address)
}

// Snapshot is the full watcher state, as served by the status API.
type Snapshot struct {
	Chain      string                 `json:"chain"`
	ChainID    string                 `json:"chain_id"`
	Address    string                 `json:"address,omitempty"`
	Status     models.NodeStatus      `json:"status"`
	Overview   models.NetworkOverview `json:"overview"`
	Validators []models.Validator     `json:"validators"`
	Blocks     []models.BlockSummary  `json:"blocks"`
	Portfolio  *models.Portfolio      `json:"portfolio,omitempty"`
}

// Watcher manages background monitoring and state.
type Watcher struct {
	config  config.GlobalConfig
	chain   config.ChainConfig
	address string
	logger  zerolog.Logger

	status     models.NodeStatus
	blocks     []models.BlockSummary
	overview   models.NetworkOverview
	validators []models.Validator
	portfolio  *models.Portfolio

	// set once a live fetch succeeds; fixtures never replace live data
	liveOverview   bool
	liveValidators bool

	subscribers []Subscriber
	mu          sync.RWMutex
	stopChan    chan struct{}
	stopOnce    sync.Once
	refreshChan chan struct{}
	accountChan chan struct{}
	dataSource  DataSource
	fixtures    fixtures.Data
}

// NewWatcher creates a watcher for chain. address may be empty until a wallet
// connects.
func NewWatcher(chain config.ChainConfig, address string, globalCfg config.GlobalConfig, logger zerolog.Logger) *Watcher {
	log := logging.WithChain(logging.ForComponent(logger, logging.ComponentWatcher), chain.Name)
	fx, err := fixtures.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load fixtures")
	}
	return &Watcher{
		config:      globalCfg,
		chain:       chain,
		address:     address,
		logger:      log,
		stopChan:    make(chan struct{}),
		refreshChan: make(chan struct{}, 1),
		accountChan: make(chan struct{}, 1),
		dataSource:  &RealDataSource{},
		fixtures:    fx,
	}
}

// SetDataSource allows overriding the data source (useful for testing).
func (w *Watcher) SetDataSource(ds DataSource) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataSource = ds
}

func (w *Watcher) source() DataSource {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dataSource
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			// Slow subscribers miss events; the next poll catches them up.
		}
	}
}

func (w *Watcher) notifyError(source string, err error, mock bool) {
	w.logger.Warn().Err(err).Str(logging.FieldEvent, source).Bool("mock", mock).Msg("Fetch failed")
	w.notify(Event{Type: EventError, Data: ErrorData{Source: source, Message: err.Error(), Mock: mock}})
}

// Start begins the monitoring loops.
func (w *Watcher) Start(ctx context.Context) {
	go w.pollingLoop(ctx)
}

// Stop stops the monitoring loops.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

// Refresh requests an immediate full fetch.
func (w *Watcher) Refresh() {
	select {
	case w.refreshChan <- struct{}{}:
	default:
	}
}

// SetAddress switches the tracked account and requests an account fetch.
func (w *Watcher) SetAddress(address string) {
	w.mu.Lock()
	if w.address == address {
		w.mu.Unlock()
		return
	}
	w.address = address
	w.portfolio = nil
	w.mu.Unlock()

	select {
	case w.accountChan <- struct{}{}:
	default:
	}
}

func interval(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	// Initial fetch
	w.fetchAll(ctx)

	statusTicker := time.NewTicker(interval(w.config.StatusIntervalSeconds, defaultStatusInterval))
	defer statusTicker.Stop()
	networkTicker := time.NewTicker(interval(w.config.NetworkIntervalSeconds, defaultNetworkInterval))
	defer networkTicker.Stop()
	accountTicker := time.NewTicker(interval(w.config.BalanceIntervalSeconds, defaultAccountInterval))
	defer accountTicker.Stop()

	for {
		select {
		case <-statusTicker.C:
			w.fetchStatus(ctx)
		case <-networkTicker.C:
			w.fetchNetwork(ctx)
		case <-accountTicker.C:
			w.fetchAccount(ctx)
		case <-w.accountChan:
			w.fetchAccount(ctx)
		case <-w.refreshChan:
			w.fetchAll(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) fetchAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, fetch := range []func(context.Context){w.fetchStatus, w.fetchNetwork, w.fetchAccount} {
		wg.Add(1)
		go func(f func(context.Context)) {
			defer wg.Done()
			f(ctx)
		}(fetch)
	}
	wg.Wait()
}

func (w *Watcher) fetchStatus(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	ds := w.source()

	status, _, err := ds.FetchStatus(ctx, w.chain)
	if err != nil {
		w.notifyError("status", err, false)
	} else {
		w.mu.Lock()
		w.status = status
		w.mu.Unlock()
		w.notify(Event{Type: EventStatusUpdated, Data: status})
	}

	n := w.config.RecentBlocks
	if n <= 0 {
		n = defaultRecentBlocks
	}
	blocks, _, err := ds.FetchRecentBlocks(ctx, w.chain, n)
	if err != nil {
		w.mu.Lock()
		useFixture := len(w.blocks) == 0 && len(w.fixtures.Blocks) > 0
		if useFixture {
			w.blocks = append([]models.BlockSummary(nil), w.fixtures.Blocks...)
		}
		w.mu.Unlock()
		w.notifyError("blocks", err, useFixture)
		if useFixture {
			w.notify(Event{Type: EventBlocksUpdated, Data: w.Blocks()})
		}
		return
	}
	w.mu.Lock()
	w.blocks = blocks
	w.mu.Unlock()
	w.notify(Event{Type: EventBlocksUpdated, Data: blocks})
}

func (w *Watcher) fetchNetwork(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	ds := w.source()

	overview, _, err := ds.FetchNetworkOverview(ctx, w.chain)
	w.mu.Lock()
	useFixture := err != nil && !w.liveOverview
	switch {
	case err == nil:
		w.overview = overview
		w.liveOverview = true
	case useFixture:
		overview = w.fixtures.Overview
		overview.Mock = true
		overview.UpdatedAt = time.Now()
		w.overview = overview
	}
	w.mu.Unlock()
	if err != nil {
		w.notifyError("overview", err, useFixture)
	}
	if err == nil || useFixture {
		w.notify(Event{Type: EventOverviewUpdated, Data: overview})
	}

	validators, _, err := ds.FetchValidators(ctx, w.chain, rpc.StatusBonded)
	w.mu.Lock()
	useFixture = err != nil && !w.liveValidators
	switch {
	case err == nil:
		w.validators = validators
		w.liveValidators = true
	case useFixture:
		validators = w.fixtures.ValidatorsWithStatus(rpc.StatusBonded)
		w.validators = validators
	}
	w.mu.Unlock()
	if err != nil {
		w.notifyError("validators", err, useFixture)
	}
	if err == nil || useFixture {
		w.notify(Event{Type: EventValidatorsUpdated, Data: validators})
	}
}

func (w *Watcher) fetchAccount(ctx context.Context) {
	address := w.Address()
	if address == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	p, err := w.source().FetchPortfolio(ctx, w.chain, address)
	if err != nil {
		w.notifyError("portfolio", err, false)
		return
	}

	w.mu.Lock()
	if w.address != address {
		// Switched while fetching.
		w.mu.Unlock()
		return
	}
	w.portfolio = &p
	w.mu.Unlock()
	w.notify(Event{Type: EventPortfolioUpdated, Data: p})
}

// Chain returns the watched chain.
func (w *Watcher) Chain() config.ChainConfig {
	return w.chain
}

// Address returns the tracked account, empty when none.
func (w *Watcher) Address() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address
}

// Status returns the latest node status.
func (w *Watcher) Status() models.NodeStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Blocks returns a copy of the recent blocks, newest first.
func (w *Watcher) Blocks() []models.BlockSummary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.BlockSummary(nil), w.blocks...)
}

// Overview returns a copy of the network overview.
func (w *Watcher) Overview() models.NetworkOverview {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ov := w.overview
	ov.CommunityPool = append([]models.Coin(nil), w.overview.CommunityPool...)
	return ov
}

// Validators returns a copy of the bonded validator set.
func (w *Watcher) Validators() []models.Validator {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]models.Validator(nil), w.validators...)
}

// Portfolio returns a copy of the tracked account's data, false before the
// first successful fetch.
func (w *Watcher) Portfolio() (models.Portfolio, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.portfolio == nil {
		return models.Portfolio{}, false
	}
	return copyPortfolio(*w.portfolio), true
}

func copyPortfolio(p models.Portfolio) models.Portfolio {
	p.Balances = append([]models.Coin(nil), p.Balances...)
	p.Delegations = append([]models.Delegation(nil), p.Delegations...)
	p.Unbonding = append([]models.UnbondingEntry(nil), p.Unbonding...)
	p.Rewards = append([]models.Reward(nil), p.Rewards...)
	p.TotalRewards = append([]models.Coin(nil), p.TotalRewards...)
	p.FailedURLs = append([]string(nil), p.FailedURLs...)
	return p
}

// Snapshot returns the whole state at once.
func (w *Watcher) Snapshot() Snapshot {
	s := Snapshot{
		Chain:      w.chain.Name,
		ChainID:    w.chain.ChainID,
		Address:    w.Address(),
		Status:     w.Status(),
		Overview:   w.Overview(),
		Validators: w.Validators(),
		Blocks:     w.Blocks(),
	}
	if p, ok := w.Portfolio(); ok {
		s.Portfolio = &p
	}
	return s
}
