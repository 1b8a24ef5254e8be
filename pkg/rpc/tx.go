package rpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"cosmterm/pkg/config"
	"cosmterm/pkg/models"
)

const broadcastModeSync = "BROADCAST_MODE_SYNC"

type txResponse struct {
	Height    string `json:"height"`
	TxHash    string `json:"txhash"`
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	RawLog    string `json:"raw_log"`
	GasUsed   string `json:"gas_used"`
}

func (r txResponse) result() models.TxResult {
	h, _ := strconv.ParseInt(r.Height, 10, 64)
	g, _ := strconv.ParseInt(r.GasUsed, 10, 64)
	return models.TxResult{
		TxHash:    r.TxHash,
		Height:    h,
		Code:      r.Code,
		Codespace: r.Codespace,
		RawLog:    r.RawLog,
		GasUsed:   g,
	}
}

// BroadcastTx submits protobuf-encoded tx bytes in sync mode. A non-zero
// check-tx code is returned as ErrTxFailed alongside the result.
func BroadcastTx(ctx context.Context, chain config.ChainConfig, txBytes []byte) (models.TxResult, error) {
	body := map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     broadcastModeSync,
	}
	var resp struct {
		TxResponse txResponse `json:"tx_response"`
	}
	// A 4xx answer is final and is not retried on another endpoint.
	_, err := withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return postJSON(ctx, base, "/cosmos/tx/v1beta1/txs", body, &resp)
	})
	if err != nil {
		return models.TxResult{}, err
	}
	res := resp.TxResponse.result()
	if res.Code != 0 {
		return res, fmt.Errorf("%w: code %d (%s): %s", ErrTxFailed, res.Code, res.Codespace, res.RawLog)
	}
	return res, nil
}

// FetchTx looks up a transaction by hash.
func FetchTx(ctx context.Context, chain config.ChainConfig, hash string) (models.TxResult, error) {
	var resp struct {
		TxResponse txResponse `json:"tx_response"`
	}
	_, err := withEndpoints(ctx, chain.LCDURLs, func(base string) error {
		return getJSON(ctx, base, "/cosmos/tx/v1beta1/txs/"+url.PathEscape(hash), nil, &resp)
	})
	if err != nil {
		return models.TxResult{}, err
	}
	return resp.TxResponse.result(), nil
}
