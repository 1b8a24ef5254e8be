package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmterm/pkg/config"
	"cosmterm/pkg/models"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// MockProvider is a mock implementation of Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockProvider) Enable(ctx context.Context, chainID string) error {
	args := m.Called(ctx, chainID)
	return args.Error(0)
}

func (m *MockProvider) GetKey(ctx context.Context, chainID string) (Key, error) {
	args := m.Called(ctx, chainID)
	return args.Get(0).(Key), args.Error(1)
}

func (m *MockProvider) SignAmino(ctx context.Context, chainID, signer string, doc StdSignDoc) (SignResponse, error) {
	args := m.Called(ctx, chainID, signer, doc)
	return args.Get(0).(SignResponse), args.Error(1)
}

func testChain(lcd string) config.ChainConfig {
	return config.ChainConfig{
		Name:         "Test",
		ChainID:      "testchain-1",
		Bech32Prefix: "cosmos",
		Denom:        "uatom",
		LCDURLs:      []string{lcd},
		GasPrice:     0.025,
		GasLimit:     200000,
	}
}

func fastDetect() DetectOptions {
	return DetectOptions{Interval: 5 * time.Millisecond, MaxAttempts: 3, Timeout: time.Second}
}

func TestDetect_SucceedsOnLaterAttempt(t *testing.T) {
	p := new(MockProvider)
	p.On("Available", mock.Anything).Return(false).Twice()
	p.On("Available", mock.Anything).Return(true).Once()

	err := Detect(context.Background(), p, fastDetect())
	require.NoError(t, err)
	p.AssertNumberOfCalls(t, "Available", 3)
}

func TestDetect_AttemptBound(t *testing.T) {
	p := new(MockProvider)
	p.On("Available", mock.Anything).Return(false)

	err := Detect(context.Background(), p, fastDetect())
	assert.ErrorIs(t, err, ErrWalletNotFound)
	p.AssertNumberOfCalls(t, "Available", 3)
}

func TestDetect_TimeoutBound(t *testing.T) {
	p := new(MockProvider)
	p.On("Available", mock.Anything).Return(false)

	opts := DetectOptions{Interval: 10 * time.Millisecond, MaxAttempts: 100000, Timeout: 50 * time.Millisecond}
	start := time.Now()
	err := Detect(context.Background(), p, opts)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrWalletNotFound)
	assert.Less(t, elapsed, time.Second)
}

func TestDetect_Cancelled(t *testing.T) {
	p := new(MockProvider)
	p.On("Available", mock.Anything).Return(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := DetectOptions{Interval: 10 * time.Millisecond, MaxAttempts: 100, Timeout: time.Second}
	err := Detect(ctx, p, opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrWalletNotFound))
}

func TestDetectOptionsFromConfig(t *testing.T) {
	opts := DetectOptionsFromConfig(config.GlobalConfig{})
	assert.Equal(t, DefaultDetectOptions(), opts)
}

func TestPubKeyToAddress(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	pub := crypto.CompressPubkey(&key.PublicKey)

	addr, err := PubKeyToAddress(pub, "cosmos")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "cosmos1"))
	assert.Len(t, addr, len("cosmos1")+38)
	assert.NoError(t, ValidateAddress(addr, "cosmos"))
	assert.Error(t, ValidateAddress(addr, "osmo"))
	assert.Error(t, ValidateAddress("cosmos1notvalid", "cosmos"))
}

func TestLocalProvider_Lifecycle(t *testing.T) {
	ctx := context.Background()

	empty, err := NewLocalProvider("", "cosmos")
	require.NoError(t, err)
	assert.False(t, empty.Available(ctx))
	assert.ErrorIs(t, empty.Enable(ctx, "testchain-1"), ErrWalletNotFound)

	_, err = NewLocalProvider("zz", "cosmos")
	assert.Error(t, err)

	p, err := NewLocalProvider("0x"+testKeyHex, "cosmos")
	require.NoError(t, err)
	assert.True(t, p.Available(ctx))

	_, err = p.GetKey(ctx, "testchain-1")
	assert.ErrorIs(t, err, ErrKeyUnavailable)

	require.NoError(t, p.Enable(ctx, "testchain-1"))
	key, err := p.GetKey(ctx, "testchain-1")
	require.NoError(t, err)
	assert.Len(t, key.PubKey, 33)
	assert.Equal(t, "secp256k1", key.Algo)
}

func TestLocalProviderFromConfig(t *testing.T) {
	t.Setenv(config.PrivateKeyEnv, testKeyHex)
	p, err := LocalProviderFromConfig(config.WalletConfig{}, "cosmos")
	require.NoError(t, err)
	assert.True(t, p.Available(context.Background()))

	_, err = LocalProviderFromConfig(config.WalletConfig{KeyFile: "/nonexistent/key"}, "cosmos")
	assert.Error(t, err)
}

func TestSortedJSON(t *testing.T) {
	doc := BuildSignDoc("testchain-1",
		models.AccountInfo{AccountNumber: 12, Sequence: 3},
		[]Msg{MsgSend{FromAddress: "a", ToAddress: "b", Amount: []models.Coin{{Denom: "uatom", Amount: "1"}}}},
		Fee{Amount: []models.Coin{{Denom: "uatom", Amount: "5000"}}, Gas: 200000},
		"",
	)
	got, err := doc.SortedJSON()
	require.NoError(t, err)

	want := `{"account_number":"12","chain_id":"testchain-1",` +
		`"fee":{"amount":[{"amount":"5000","denom":"uatom"}],"gas":"200000"},"memo":"",` +
		`"msgs":[{"type":"cosmos-sdk/MsgSend","value":{"amount":[{"amount":"1","denom":"uatom"}],"from_address":"a","to_address":"b"}}],` +
		`"sequence":"3"}`
	assert.Equal(t, want, string(got))
}

func TestAminoTypes(t *testing.T) {
	coin := models.Coin{Denom: "uatom", Amount: "10"}
	tests := []struct {
		msg       Msg
		aminoType string
		typeURL   string
	}{
		{MsgSend{}, "cosmos-sdk/MsgSend", "/cosmos.bank.v1beta1.MsgSend"},
		{MsgDelegate{Amount: coin}, "cosmos-sdk/MsgDelegate", "/cosmos.staking.v1beta1.MsgDelegate"},
		{MsgUndelegate{Amount: coin}, "cosmos-sdk/MsgUndelegate", "/cosmos.staking.v1beta1.MsgUndelegate"},
		{MsgWithdrawDelegatorReward{}, "cosmos-sdk/MsgWithdrawDelegationReward", "/cosmos.distribution.v1beta1.MsgWithdrawDelegatorReward"},
	}
	for _, tt := range tests {
		t.Run(tt.aminoType, func(t *testing.T) {
			assert.Equal(t, tt.aminoType, tt.msg.Amino().Type)
			assert.Equal(t, tt.typeURL, tt.msg.TypeURL())
		})
	}
}

func TestFeeForChain(t *testing.T) {
	fee := FeeForChain(testChain(""))
	assert.Equal(t, uint64(200000), fee.Gas)
	assert.Equal(t, []models.Coin{{Denom: "uatom", Amount: "5000"}}, fee.Amount)
}

// protoFields splits one protobuf message into its length-delimited and
// varint fields.
func protoFields(t *testing.T, b []byte) (map[protowire.Number][][]byte, map[protowire.Number]uint64) {
	t.Helper()
	msgs := map[protowire.Number][][]byte{}
	ints := map[protowire.Number]uint64{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.GreaterOrEqual(t, n, 0)
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			require.GreaterOrEqual(t, n, 0)
			msgs[num] = append(msgs[num], v)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			require.GreaterOrEqual(t, n, 0)
			ints[num] = v
			b = b[n:]
		default:
			t.Fatalf("unexpected wire type %v", typ)
		}
	}
	return msgs, ints
}

func TestEncodeTx(t *testing.T) {
	msg := MsgDelegate{DelegatorAddress: "cosmos1d", ValidatorAddress: "cosmosvaloper1v", Amount: models.Coin{Denom: "uatom", Amount: "10"}}
	fee := Fee{Amount: []models.Coin{{Denom: "uatom", Amount: "5000"}}, Gas: 200000}
	pub := []byte{0x02, 0x01, 0x02}
	sig := []byte{0xAA, 0xBB}

	tx := EncodeTx([]Msg{msg}, "hello", fee, pub, 7, sig)

	top, _ := protoFields(t, tx)
	require.Len(t, top[1], 1)
	require.Len(t, top[2], 1)
	assert.Equal(t, [][]byte{sig}, top[3])

	body, _ := protoFields(t, top[1][0])
	assert.Equal(t, "hello", string(body[2][0]))
	anyMsg, _ := protoFields(t, body[1][0])
	assert.Equal(t, "/cosmos.staking.v1beta1.MsgDelegate", string(anyMsg[1][0]))
	delegate, _ := protoFields(t, anyMsg[2][0])
	assert.Equal(t, "cosmos1d", string(delegate[1][0]))
	assert.Equal(t, "cosmosvaloper1v", string(delegate[2][0]))

	authInfo, _ := protoFields(t, top[2][0])
	signer, signerInts := protoFields(t, authInfo[1][0])
	assert.Equal(t, uint64(7), signerInts[3])
	pkAny, _ := protoFields(t, signer[1][0])
	assert.Equal(t, pubKeyTypeURL, string(pkAny[1][0]))
	modeInfo, _ := protoFields(t, signer[2][0])
	_, single := protoFields(t, modeInfo[1][0])
	assert.Equal(t, uint64(signModeLegacyAminoJSON), single[1])

	feeMsg, feeInts := protoFields(t, authInfo[2][0])
	assert.Equal(t, uint64(200000), feeInts[2])
	coin, _ := protoFields(t, feeMsg[1][0])
	assert.Equal(t, "uatom", string(coin[1][0]))
	assert.Equal(t, "5000", string(coin[2][0]))
}

func newWalletLCD(t *testing.T, address string, balanceStatus int, broadcast *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cosmos/bank/v1beta1/balances/"+address:
			if balanceStatus != http.StatusOK {
				w.WriteHeader(balanceStatus)
				return
			}
			_, _ = w.Write([]byte(`{"balances":[{"denom":"uatom","amount":"2500000"}]}`))
		case r.URL.Path == "/cosmos/auth/v1beta1/accounts/"+address:
			_, _ = w.Write([]byte(`{"account":{"address":"` + address + `","account_number":"12","sequence":"3"}}`))
		case r.URL.Path == "/cosmos/tx/v1beta1/txs" && r.Method == http.MethodPost:
			var req struct {
				TxBytes string `json:"tx_bytes"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if broadcast != nil {
				*broadcast, _ = base64.StdEncoding.DecodeString(req.TxBytes)
			}
			_, _ = w.Write([]byte(`{"tx_response":{"txhash":"DEADBEEF","code":0}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func localAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	addr, err := PubKeyToAddress(crypto.CompressPubkey(&key.PublicKey), "cosmos")
	require.NoError(t, err)
	return addr
}

func TestConnect_Integration(t *testing.T) {
	addr := localAddress(t)
	srv := newWalletLCD(t, addr, http.StatusOK, nil)
	p, err := NewLocalProvider(testKeyHex, "cosmos")
	require.NoError(t, err)

	s, err := Connect(context.Background(), p, testChain(srv.URL), fastDetect(), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, addr, s.Address())
	assert.NoError(t, s.BalanceErr)
	assert.Equal(t, []models.Coin{{Denom: "uatom", Amount: "2500000"}}, s.Balances)
}

func TestConnect_BalanceFailureKeepsSession(t *testing.T) {
	addr := localAddress(t)
	srv := newWalletLCD(t, addr, http.StatusInternalServerError, nil)
	p, err := NewLocalProvider(testKeyHex, "cosmos")
	require.NoError(t, err)

	s, err := Connect(context.Background(), p, testChain(srv.URL), fastDetect(), zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, s.BalanceErr)
	assert.Empty(t, s.Balances)
}

func TestConnect_StepErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		p, err := NewLocalProvider("", "cosmos")
		require.NoError(t, err)
		_, err = Connect(context.Background(), p, testChain("http://127.0.0.1:1"), fastDetect(), zerolog.Nop())
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})

	t.Run("enable rejected", func(t *testing.T) {
		p := new(MockProvider)
		p.On("Available", mock.Anything).Return(true)
		p.On("Enable", mock.Anything, "testchain-1").Return(errors.New("user declined"))

		_, err := Connect(context.Background(), p, testChain("http://127.0.0.1:1"), fastDetect(), zerolog.Nop())
		assert.ErrorIs(t, err, ErrEnableRejected)
		assert.Contains(t, err.Error(), "user declined")
		p.AssertNotCalled(t, "GetKey", mock.Anything, mock.Anything)
	})

	t.Run("wrong prefix", func(t *testing.T) {
		p := new(MockProvider)
		p.On("Available", mock.Anything).Return(true)
		p.On("Enable", mock.Anything, "testchain-1").Return(nil)
		p.On("GetKey", mock.Anything, "testchain-1").Return(Key{Address: "osmo1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5a3kcq6"}, nil)

		_, err := Connect(context.Background(), p, testChain("http://127.0.0.1:1"), fastDetect(), zerolog.Nop())
		assert.ErrorIs(t, err, ErrKeyUnavailable)
	})
}

func TestSignAndBroadcast_Integration(t *testing.T) {
	addr := localAddress(t)
	var txBytes []byte
	srv := newWalletLCD(t, addr, http.StatusOK, &txBytes)
	p, err := NewLocalProvider(testKeyHex, "cosmos")
	require.NoError(t, err)
	chain := testChain(srv.URL)

	s, err := Connect(context.Background(), p, chain, fastDetect(), zerolog.Nop())
	require.NoError(t, err)

	msgs := []Msg{MsgSend{FromAddress: addr, ToAddress: addr, Amount: []models.Coin{{Denom: "uatom", Amount: "1"}}}}
	fee := FeeForChain(chain)
	res, err := SignAndBroadcast(context.Background(), s, msgs, fee, "memo")
	require.NoError(t, err)
	assert.Equal(t, "DEADBEEF", res.TxHash)

	top, _ := protoFields(t, txBytes)
	require.Len(t, top[3], 1)
	sig := top[3][0]
	assert.Len(t, sig, 64)

	doc := BuildSignDoc(chain.ChainID, models.AccountInfo{AccountNumber: 12, Sequence: 3}, msgs, fee, "memo")
	signBytes, err := doc.SortedJSON()
	require.NoError(t, err)
	digest := sha256.Sum256(signBytes)
	assert.True(t, crypto.VerifySignature(s.Key.PubKey, digest[:], sig))
}

func TestSignAndBroadcast_Rejected(t *testing.T) {
	addr := localAddress(t)
	srv := newWalletLCD(t, addr, http.StatusOK, nil)
	p := new(MockProvider)
	p.On("SignAmino", mock.Anything, "testchain-1", addr, mock.Anything).Return(SignResponse{}, errors.New("user declined"))

	s := &Session{Provider: p, Chain: testChain(srv.URL), Key: Key{Address: addr}}
	_, err := SignAndBroadcast(context.Background(), s, []Msg{MsgWithdrawDelegatorReward{DelegatorAddress: addr, ValidatorAddress: "v"}}, FeeForChain(s.Chain), "")
	assert.ErrorIs(t, err, ErrSigningRejected)

	_, err = SignAndBroadcast(context.Background(), s, nil, Fee{}, "")
	assert.Error(t, err)
}
