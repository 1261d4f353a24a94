package relay_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alejandrodnm/automerger/internal/adapters/relay"
	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubmitter(t *testing.T, base string, dryRun bool) (*relay.Submitter, *relay.Signer) {
	t.Helper()
	signer := testSigner(t, relay.VModeBump4)
	client := relay.NewClient(base, readyCredentials(), time.Second)
	sub := relay.NewSubmitter(client, signer, testEncoder(t), relay.SubmitterConfig{
		ProxyWallet:  testSafe,
		RelayAccount: testRelayAccount,
		DryRun:       dryRun,
	})
	return sub, signer
}

func convertRequest(t *testing.T) domain.ConvertRequest {
	t.Helper()
	set, err := domain.PositionsToIndexSet([]int{0, 2, 8, 18})
	require.NoError(t, err)
	return domain.ConvertRequest{
		EventSlug: "which-party-wins",
		MarketID:  testMarketID,
		IndexSet:  set,
		Amount:    decimal.NewFromInt(7),
	}
}

func TestSubmitter_SubmitConvert(t *testing.T) {
	f, srv := newFakeRelayer(t)
	sub, signer := newTestSubmitter(t, srv.URL, false)

	res, err := sub.SubmitConvert(context.Background(), convertRequest(t))
	require.NoError(t, err)

	require.Len(t, f.payloadCalls, 1)
	assert.Equal(t, testRelayAccount.Hex(), f.payloadCalls[0].Get("address"))
	require.Len(t, f.submitted, 1)

	got := f.submitted[0]
	assert.Equal(t, relay.SchemeProxy, got.Type)
	assert.Equal(t, testRelayAccount.Hex(), got.From)
	assert.Equal(t, relay.DefaultProxyFactory, got.To)
	assert.Equal(t, testSafe.Hex(), got.ProxyWallet)
	assert.Equal(t, "42", got.Nonce)
	assert.Equal(t, "6237523", got.SignatureParams.GasLimit)
	assert.Equal(t, "0", got.SignatureParams.RelayerFee)
	assert.Equal(t, "0", got.SignatureParams.GasPrice)
	assert.Equal(t, relay.DefaultRelayHub, got.SignatureParams.RelayHub)
	assert.Equal(t, testRelay.Hex(), got.SignatureParams.Relay)
	assert.Empty(t, got.SignatureParams.SafeTxnGas)

	// Same inputs as the golden ProxyTx, so the relayer would rebuild the golden digest.
	want := goldenProxyTx(t)
	assert.Equal(t, hexutil.Encode(want.Data), got.Data)

	sig, err := hexutil.Decode(got.Signature)
	require.NoError(t, err)
	signerAddr, err := relay.RecoverSigner(common.HexToHash(goldenProxyDigest), sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), signerAddr)

	assert.Equal(t, "PROXY", res.Scheme)
	assert.Equal(t, domain.KindConvert, res.Kind)
	assert.Equal(t, "262405", res.IndexSet)
	assert.Equal(t, "7000000", res.BaseUnits)
	assert.Equal(t, "42", res.Nonce)
	assert.Equal(t, "tx-123", res.TxHash)
	assert.Empty(t, res.Error)
}

func TestSubmitter_SubmitMerge(t *testing.T) {
	f, srv := newFakeRelayer(t)
	sub, signer := newTestSubmitter(t, srv.URL, false)

	res, err := sub.SubmitMerge(context.Background(), domain.MergeRequest{
		ConditionID: testConditionID,
		Slug:        "will-it-rain",
		Amount:      decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	require.Len(t, f.submitted, 1)

	got := f.submitted[0]
	assert.Equal(t, relay.SchemeSafe, got.Type)
	assert.Equal(t, testRelayAccount.Hex(), got.From)
	assert.Equal(t, testCTF.Hex(), got.To)
	assert.Equal(t, testSafe.Hex(), got.ProxyWallet)
	assert.Equal(t, "42", got.Nonce)
	assert.Equal(t, "0", got.SignatureParams.Operation)
	assert.Equal(t, "0", got.SignatureParams.SafeTxnGas)
	assert.Equal(t, "0", got.SignatureParams.BaseGas)
	assert.Equal(t, common.Address{}.Hex(), got.SignatureParams.GasToken)
	assert.Equal(t, common.Address{}.Hex(), got.SignatureParams.RefundReceiver)
	assert.Empty(t, got.SignatureParams.RelayHub)

	// raw mergePositions, not wrapped in proxy()
	assert.Equal(t, hexutil.Encode(goldenSafeTx(t).Data), got.Data)

	sig, err := hexutil.Decode(got.Signature)
	require.NoError(t, err)
	assert.Contains(t, []byte{31, 32}, sig[64])
	signerAddr, err := relay.RecoverSigner(common.HexToHash(goldenSafeDigest), sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), signerAddr)

	assert.Equal(t, "SAFE", res.Scheme)
	assert.Equal(t, "20000000", res.BaseUnits)
}

func TestSubmitter_DryRunDoesNotSubmit(t *testing.T) {
	f, srv := newFakeRelayer(t)
	sub, _ := newTestSubmitter(t, srv.URL, true)

	res, err := sub.SubmitConvert(context.Background(), convertRequest(t))
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Empty(t, f.submitted)
	assert.Len(t, f.payloadCalls, 1)
}

func TestSubmitter_RejectedIsRecorded(t *testing.T) {
	f, srv := newFakeRelayer(t)
	f.submitStatus = http.StatusUnprocessableEntity
	f.submitBody = `{"error":"nonce too low"}`
	sub, _ := newTestSubmitter(t, srv.URL, false)

	res, err := sub.SubmitConvert(context.Background(), convertRequest(t))
	assert.ErrorIs(t, err, domain.ErrRelayRejected)
	assert.Contains(t, res.Response, "nonce too low")
	assert.NotEmpty(t, res.Error)
}

func TestSubmitter_EncodingFailureMakesNoRequest(t *testing.T) {
	f, srv := newFakeRelayer(t)
	sub, _ := newTestSubmitter(t, srv.URL, false)

	req := convertRequest(t)
	req.MarketID = "0x1234"
	_, err := sub.SubmitConvert(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrEncoding)
	assert.Empty(t, f.payloadCalls)
}

func TestSubmitter_BadRelayAddress(t *testing.T) {
	f, srv := newFakeRelayer(t)
	f.relayAddress = "not-an-address"
	sub, _ := newTestSubmitter(t, srv.URL, false)

	_, err := sub.SubmitConvert(context.Background(), convertRequest(t))
	assert.ErrorIs(t, err, domain.ErrEncoding)
	assert.Empty(t, f.submitted)
}

func TestSubmitter_DefaultsRelayAccountToSigner(t *testing.T) {
	f, srv := newFakeRelayer(t)
	signer := testSigner(t, relay.VModeBump4)
	client := relay.NewClient(srv.URL, readyCredentials(), time.Second)
	sub := relay.NewSubmitter(client, signer, testEncoder(t), relay.SubmitterConfig{ProxyWallet: testSafe})

	_, err := sub.SubmitMerge(context.Background(), domain.MergeRequest{
		ConditionID: testConditionID,
		Amount:      decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	require.Len(t, f.submitted, 1)
	assert.Equal(t, signer.Address().Hex(), f.submitted[0].From)
}

func TestParseAddress(t *testing.T) {
	a, err := relay.ParseAddress("proxy_wallet", testSafe.Hex())
	require.NoError(t, err)
	assert.Equal(t, testSafe, a)

	_, err = relay.ParseAddress("proxy_wallet", "0x123")
	assert.ErrorIs(t, err, domain.ErrEncoding)
}

