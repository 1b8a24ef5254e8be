package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"cosmterm/pkg/config"
	"cosmterm/pkg/models"
	"cosmterm/pkg/rpc"

	"google.golang.org/protobuf/encoding/protowire"
)

// signModeLegacyAminoJSON is SIGN_MODE_LEGACY_AMINO_JSON.
const signModeLegacyAminoJSON = 127

const pubKeyTypeURL = "/cosmos.crypto.secp256k1.PubKey"

// Msg is a transaction message with both of its encodings.
type Msg interface {
	Amino() AminoMsg
	TypeURL() string
	// Marshal returns the protobuf encoding.
	Marshal() []byte
}

// MsgSend transfers coins between accounts.
type MsgSend struct {
	FromAddress string
	ToAddress   string
	Amount      []models.Coin
}

func (m MsgSend) Amino() AminoMsg {
	return AminoMsg{Type: "cosmos-sdk/MsgSend", Value: map[string]interface{}{
		"from_address": m.FromAddress,
		"to_address":   m.ToAddress,
		"amount":       m.Amount,
	}}
}

func (m MsgSend) TypeURL() string { return "/cosmos.bank.v1beta1.MsgSend" }

func (m MsgSend) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.FromAddress)
	b = appendString(b, 2, m.ToAddress)
	for _, c := range m.Amount {
		b = appendMessage(b, 3, marshalCoin(c))
	}
	return b
}

// MsgDelegate bonds tokens to a validator.
type MsgDelegate struct {
	DelegatorAddress string
	ValidatorAddress string
	Amount           models.Coin
}

func (m MsgDelegate) Amino() AminoMsg {
	return AminoMsg{Type: "cosmos-sdk/MsgDelegate", Value: stakingValue(m.DelegatorAddress, m.ValidatorAddress, m.Amount)}
}

func (m MsgDelegate) TypeURL() string { return "/cosmos.staking.v1beta1.MsgDelegate" }

func (m MsgDelegate) Marshal() []byte {
	return marshalStaking(m.DelegatorAddress, m.ValidatorAddress, m.Amount)
}

// MsgUndelegate starts unbonding tokens from a validator.
type MsgUndelegate struct {
	DelegatorAddress string
	ValidatorAddress string
	Amount           models.Coin
}

func (m MsgUndelegate) Amino() AminoMsg {
	return AminoMsg{Type: "cosmos-sdk/MsgUndelegate", Value: stakingValue(m.DelegatorAddress, m.ValidatorAddress, m.Amount)}
}

func (m MsgUndelegate) TypeURL() string { return "/cosmos.staking.v1beta1.MsgUndelegate" }

func (m MsgUndelegate) Marshal() []byte {
	return marshalStaking(m.DelegatorAddress, m.ValidatorAddress, m.Amount)
}

// MsgWithdrawDelegatorReward claims the rewards of one delegation.
type MsgWithdrawDelegatorReward struct {
	DelegatorAddress string
	ValidatorAddress string
}

func (m MsgWithdrawDelegatorReward) Amino() AminoMsg {
	return AminoMsg{Type: "cosmos-sdk/MsgWithdrawDelegationReward", Value: map[string]interface{}{
		"delegator_address": m.DelegatorAddress,
		"validator_address": m.ValidatorAddress,
	}}
}

func (m MsgWithdrawDelegatorReward) TypeURL() string {
	return "/cosmos.distribution.v1beta1.MsgWithdrawDelegatorReward"
}

func (m MsgWithdrawDelegatorReward) Marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.DelegatorAddress)
	b = appendString(b, 2, m.ValidatorAddress)
	return b
}

func stakingValue(delegator, validator string, amount models.Coin) map[string]interface{} {
	return map[string]interface{}{
		"delegator_address": delegator,
		"validator_address": validator,
		"amount":            amount,
	}
}

func marshalStaking(delegator, validator string, amount models.Coin) []byte {
	var b []byte
	b = appendString(b, 1, delegator)
	b = appendString(b, 2, validator)
	b = appendMessage(b, 3, marshalCoin(amount))
	return b
}

// Fee is the fee and gas limit of a transaction.
type Fee struct {
	Amount []models.Coin
	Gas    uint64
}

// FeeForChain prices the chain's gas limit at its gas price, rounded up.
func FeeForChain(chain config.ChainConfig) Fee {
	amount := uint64(math.Ceil(chain.GasPrice * float64(chain.GasLimit)))
	return Fee{
		Amount: []models.Coin{{Denom: chain.Denom, Amount: strconv.FormatUint(amount, 10)}},
		Gas:    chain.GasLimit,
	}
}

func (f Fee) std() StdFee {
	amount := f.Amount
	if amount == nil {
		amount = []models.Coin{}
	}
	return StdFee{Amount: amount, Gas: strconv.FormatUint(f.Gas, 10)}
}

func feeFromStd(s StdFee) (Fee, error) {
	gas, err := strconv.ParseUint(s.Gas, 10, 64)
	if err != nil {
		return Fee{}, fmt.Errorf("invalid gas %q: %w", s.Gas, err)
	}
	return Fee{Amount: s.Amount, Gas: gas}, nil
}

// BuildSignDoc assembles the amino sign doc for msgs.
func BuildSignDoc(chainID string, acc models.AccountInfo, msgs []Msg, fee Fee, memo string) StdSignDoc {
	aminoMsgs := make([]AminoMsg, 0, len(msgs))
	for _, m := range msgs {
		aminoMsgs = append(aminoMsgs, m.Amino())
	}
	return StdSignDoc{
		AccountNumber: strconv.FormatUint(acc.AccountNumber, 10),
		ChainID:       chainID,
		Fee:           fee.std(),
		Memo:          memo,
		Msgs:          aminoMsgs,
		Sequence:      strconv.FormatUint(acc.Sequence, 10),
	}
}

// SortedJSON returns the canonical sign bytes: compact JSON with every object's
// keys sorted.
func (d StdSignDoc) SortedJSON() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// EncodeTx builds protobuf TxRaw bytes signed in legacy amino JSON mode.
func EncodeTx(msgs []Msg, memo string, fee Fee, pubKey []byte, sequence uint64, signature []byte) []byte {
	var body []byte
	for _, m := range msgs {
		body = appendMessage(body, 1, marshalAny(m.TypeURL(), m.Marshal()))
	}
	body = appendString(body, 2, memo)

	var pk []byte
	pk = appendBytes(pk, 1, pubKey)

	var single []byte
	single = appendVarint(single, 1, signModeLegacyAminoJSON)
	var modeInfo []byte
	modeInfo = appendMessage(modeInfo, 1, single)

	var signerInfo []byte
	signerInfo = appendMessage(signerInfo, 1, marshalAny(pubKeyTypeURL, pk))
	signerInfo = appendMessage(signerInfo, 2, modeInfo)
	signerInfo = appendVarint(signerInfo, 3, sequence)

	var feeBytes []byte
	for _, c := range fee.Amount {
		feeBytes = appendMessage(feeBytes, 1, marshalCoin(c))
	}
	feeBytes = appendVarint(feeBytes, 2, fee.Gas)

	var authInfo []byte
	authInfo = appendMessage(authInfo, 1, signerInfo)
	authInfo = appendMessage(authInfo, 2, feeBytes)

	var tx []byte
	tx = appendMessage(tx, 1, body)
	tx = appendMessage(tx, 2, authInfo)
	tx = appendBytes(tx, 3, signature)
	return tx
}

// SignAndBroadcast fetches the account's number and sequence, has the wallet
// sign msgs and broadcasts the result.
func SignAndBroadcast(ctx context.Context, s *Session, msgs []Msg, fee Fee, memo string) (models.TxResult, error) {
	if len(msgs) == 0 {
		return models.TxResult{}, errors.New("no messages")
	}
	acc, err := rpc.FetchAccount(ctx, s.Chain, s.Address())
	if err != nil {
		return models.TxResult{}, fmt.Errorf("failed to fetch account: %w", err)
	}

	doc := BuildSignDoc(s.Chain.ChainID, acc, msgs, fee, memo)
	resp, err := s.Provider.SignAmino(ctx, s.Chain.ChainID, s.Address(), doc)
	if err != nil {
		if !errors.Is(err, ErrSigningRejected) {
			err = fmt.Errorf("%w: %w", ErrSigningRejected, err)
		}
		return models.TxResult{}, err
	}

	sig, err := base64.StdEncoding.DecodeString(resp.Signature.Signature)
	if err != nil {
		return models.TxResult{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	signedFee, err := feeFromStd(resp.Signed.Fee)
	if err != nil {
		return models.TxResult{}, err
	}

	txBytes := EncodeTx(msgs, resp.Signed.Memo, signedFee, s.Key.PubKey, acc.Sequence, sig)
	return rpc.BroadcastTx(ctx, s.Chain, txBytes)
}

func marshalCoin(c models.Coin) []byte {
	var b []byte
	b = appendString(b, 1, c.Denom)
	b = appendString(b, 2, c.Amount)
	return b
}

func marshalAny(typeURL string, value []byte) []byte {
	var b []byte
	b = appendString(b, 1, typeURL)
	b = appendBytes(b, 2, value)
	return b
}

// The append helpers skip zero values like proto3 does.

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendMessage always writes the field, even when empty.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
