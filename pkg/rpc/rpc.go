package rpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cosmterm/pkg/config"
	"cosmterm/pkg/models"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
)

// MaxRecentBlocks caps FetchRecentBlocks.
const MaxRecentBlocks = 50

func dial(rpcURL string) (*rpchttp.HTTP, error) {
	return rpchttp.New(strings.TrimRight(rpcURL, "/"), "/websocket")
}

// FetchStatus queries /status on the first RPC endpoint that answers.
func FetchStatus(ctx context.Context, chain config.ChainConfig) (models.NodeStatus, []string, error) {
	var status models.NodeStatus
	failed, err := withEndpoints(ctx, chain.RPCURLs, func(base string) error {
		client, err := dial(base)
		if err != nil {
			return err
		}
		res, err := client.Status(ctx)
		if err != nil {
			return err
		}
		status = statusFromResult(res, base)
		return nil
	})
	return status, failed, err
}

func statusFromResult(res *coretypes.ResultStatus, rpcURL string) models.NodeStatus {
	return models.NodeStatus{
		ChainID:         res.NodeInfo.Network,
		Moniker:         res.NodeInfo.Moniker,
		Version:         res.NodeInfo.Version,
		LatestHeight:    res.SyncInfo.LatestBlockHeight,
		LatestBlockTime: res.SyncInfo.LatestBlockTime,
		CatchingUp:      res.SyncInfo.CatchingUp,
		RPCURL:          rpcURL,
	}
}

// FetchBlock queries /block at height, or the latest block when height is 0.
func FetchBlock(ctx context.Context, chain config.ChainConfig, height int64) (models.BlockSummary, []string, error) {
	var block models.BlockSummary
	failed, err := withEndpoints(ctx, chain.RPCURLs, func(base string) error {
		client, err := dial(base)
		if err != nil {
			return err
		}
		block, err = fetchBlock(ctx, client, height)
		return err
	})
	return block, failed, err
}

func fetchBlock(ctx context.Context, client *rpchttp.HTTP, height int64) (models.BlockSummary, error) {
	var h *int64
	if height > 0 {
		h = &height
	}
	res, err := client.Block(ctx, h)
	if err != nil {
		return models.BlockSummary{}, err
	}
	return blockFromResult(res), nil
}

func blockFromResult(res *coretypes.ResultBlock) models.BlockSummary {
	if res == nil || res.Block == nil {
		return models.BlockSummary{}
	}
	hdr := res.Block.Header
	b := models.BlockSummary{
		Height:   hdr.Height,
		Hash:     res.BlockID.Hash.String(),
		ChainID:  hdr.ChainID,
		Time:     hdr.Time,
		Proposer: hdr.ProposerAddress.String(),
		TxCount:  len(res.Block.Data.Txs),
	}
	for _, tx := range res.Block.Data.Txs {
		b.TxHashes = append(b.TxHashes, fmt.Sprintf("%X", tx.Hash()))
	}
	return b
}

// FetchRecentBlocks returns up to n blocks ending at the latest height,
// newest first. All blocks come from the same endpoint.
func FetchRecentBlocks(ctx context.Context, chain config.ChainConfig, n int) ([]models.BlockSummary, []string, error) {
	if n <= 0 {
		return nil, nil, nil
	}
	if n > MaxRecentBlocks {
		n = MaxRecentBlocks
	}
	var blocks []models.BlockSummary
	failed, err := withEndpoints(ctx, chain.RPCURLs, func(base string) error {
		client, err := dial(base)
		if err != nil {
			return err
		}
		latest, err := fetchBlock(ctx, client, 0)
		if err != nil {
			return err
		}
		out := []models.BlockSummary{latest}
		for h := latest.Height - 1; h > 0 && len(out) < n; h-- {
			b, err := fetchBlock(ctx, client, h)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		blocks = out
		return nil
	})
	return blocks, failed, err
}

// FetchRPCLatency times a single /status call.
func FetchRPCLatency(ctx context.Context, rpcURL string) (models.RPCLatencyData, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	client, err := dial(rpcURL)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	if _, err := client.Status(ctx); err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	return models.RPCLatencyData{RPCURL: rpcURL, Latency: time.Since(start)}, nil
}

// BlockTimes returns the seconds between consecutive blocks of a newest-first
// slice, oldest interval first.
func BlockTimes(blocks []models.BlockSummary) []float64 {
	var out []float64
	for i := len(blocks) - 1; i > 0; i-- {
		d := blocks[i-1].Time.Sub(blocks[i].Time).Seconds()
		if d >= 0 {
			out = append(out, d)
		}
	}
	return out
}
