package onchain

// direct.go: sends the proxy envelope straight to the proxy factory from the
// owner EOA, paying gas in POL. Used when the relayer is unavailable or when
// relay.mode is "onchain". The factory forwards the calls to msg.sender's
// proxy wallet, so the calldata is identical to the relayed one.

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
)

const (
	// Conservative upper bound when estimation fails.
	proxyGasLimit = uint64(1_500_000)

	gasPriceUpdateInterval = 5 * time.Minute
	receiptTimeout         = 60 * time.Second
	receiptPollInterval    = 3 * time.Second
)

// Backend is the subset of ethclient.Client the submitter needs.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// DirectSubmitter implements ports.MergeSubmitter by sending transactions itself.
type DirectSubmitter struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	factory common.Address
	encoder *Encoder
	chainID *big.Int
	dryRun  bool

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// DialDirectSubmitter connects to the given Polygon RPC.
func DialDirectSubmitter(ctx context.Context, rpcURL string, key *ecdsa.PrivateKey, factory common.Address, enc *Encoder, dryRun bool) (*DirectSubmitter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial rpc %s: %w", rpcURL, err)
	}
	return NewDirectSubmitter(client, key, factory, enc, dryRun), nil
}

// NewDirectSubmitter creates a submitter over an existing backend.
func NewDirectSubmitter(backend Backend, key *ecdsa.PrivateKey, factory common.Address, enc *Encoder, dryRun bool) *DirectSubmitter {
	return &DirectSubmitter{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		factory: factory,
		encoder: enc,
		chainID: big.NewInt(polygonChainID),
		dryRun:  dryRun,
	}
}

// SubmitConvert sends proxy([convertPositions]) to the factory.
func (d *DirectSubmitter) SubmitConvert(ctx context.Context, req domain.ConvertRequest) (domain.Submission, error) {
	amount := BaseUnits(req.Amount)
	sub := domain.Submission{
		ID:          uuid.New().String(),
		Kind:        domain.KindConvert,
		Scheme:      "ONCHAIN",
		EventSlug:   req.EventSlug,
		Target:      req.MarketID,
		IndexSet:    req.IndexSet.String(),
		Amount:      req.Amount,
		BaseUnits:   amount.String(),
		DryRun:      d.dryRun,
		SubmittedAt: time.Now().UTC(),
	}

	data, err := d.encoder.ConvertProxyCall(req.MarketID, req.IndexSet, amount)
	if err != nil {
		sub.Error = err.Error()
		return sub, err
	}
	return d.send(ctx, sub, data)
}

// SubmitMerge sends proxy([mergePositions]) to the factory.
func (d *DirectSubmitter) SubmitMerge(ctx context.Context, req domain.MergeRequest) (domain.Submission, error) {
	amount := BaseUnits(req.Amount)
	sub := domain.Submission{
		ID:          uuid.New().String(),
		Kind:        domain.KindMerge,
		Scheme:      "ONCHAIN",
		EventSlug:   req.Slug,
		Target:      req.ConditionID,
		Amount:      req.Amount,
		BaseUnits:   amount.String(),
		DryRun:      d.dryRun,
		SubmittedAt: time.Now().UTC(),
	}

	data, err := d.encoder.MergeProxyCall(req.ConditionID, amount)
	if err != nil {
		sub.Error = err.Error()
		return sub, err
	}
	return d.send(ctx, sub, data)
}

func (d *DirectSubmitter) send(ctx context.Context, sub domain.Submission, data []byte) (domain.Submission, error) {
	fail := func(err error) (domain.Submission, error) {
		sub.Error = err.Error()
		return sub, err
	}

	nonce, err := d.backend.PendingNonceAt(ctx, d.address)
	if err != nil {
		return fail(fmt.Errorf("onchain: nonce: %w: %v", domain.ErrTransport, err))
	}
	sub.Nonce = fmt.Sprintf("%d", nonce)

	gasPrice := d.getGasPrice(ctx)

	gas, err := d.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     d.address,
		To:       &d.factory,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		gas = proxyGasLimit
		slog.Warn("onchain: gas estimate failed, using default", "err", err, "limit", proxyGasLimit)
	}
	gas = gas * 12 / 10

	tx := types.NewTransaction(nonce, d.factory, big.NewInt(0), gas, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(d.chainID), d.key)
	if err != nil {
		return fail(fmt.Errorf("onchain: sign tx: %w: %v", domain.ErrEncoding, err))
	}
	sub.TxHash = signed.Hash().Hex()

	if d.dryRun {
		slog.Info("onchain: dry run, transaction not sent", "kind", sub.Kind, "target", sub.Target, "tx", sub.TxHash)
		return sub, nil
	}

	if err := d.backend.SendTransaction(ctx, signed); err != nil {
		return fail(fmt.Errorf("onchain: send tx: %w: %v", domain.ErrTransport, err))
	}
	slog.Info("onchain: transaction sent", "kind", sub.Kind, "target", sub.Target, "amount", sub.Amount, "tx", sub.TxHash)

	receiptCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	receipt, err := d.waitForReceipt(receiptCtx, signed.Hash())
	if err != nil {
		// Sent but unconfirmed: the tx may still land, so this is not a failure.
		slog.Warn("onchain: could not confirm receipt, tx may still succeed", "tx", sub.TxHash, "err", err)
		return sub, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fail(fmt.Errorf("onchain: %w: tx reverted: %s", domain.ErrRelayRejected, sub.TxHash))
	}

	slog.Info("onchain: confirmed", "tx", sub.TxHash, "gas_used", receipt.GasUsed)
	return sub, nil
}

// getGasPrice returns the current gas price, cached to avoid excessive RPC calls.
func (d *DirectSubmitter) getGasPrice(ctx context.Context) *big.Int {
	d.mu.RLock()
	cached := d.cachedGasWei
	updatedAt := d.gasUpdatedAt
	d.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached
	}

	price, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached
		}
		return big.NewInt(30_000_000_000) // 30 gwei fallback
	}

	// +10% para entrar antes en bloque
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))

	d.mu.Lock()
	d.cachedGasWei = buffered
	d.gasUpdatedAt = time.Now()
	d.mu.Unlock()

	return buffered
}

// waitForReceipt polls for a transaction receipt until confirmed or timeout.
func (d *DirectSubmitter) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
