package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/alejandrodnm/automerger/internal/adapters/onchain"
	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Polygon mainnet relay contracts.
const (
	DefaultProxyFactory  = "0xaB45c5A4B0c941a2F231C04C3f49182e1A254052"
	DefaultRelayHub      = "0xD216153c06E857cD7f72665E0aF1d7D82172F494"
	DefaultProxyGasLimit = uint64(6_237_523)
)

// SubmitterConfig wires a Submitter to one proxy wallet.
type SubmitterConfig struct {
	ProxyWallet  common.Address
	RelayAccount common.Address // "from" de los payloads; vacío = EOA del signer
	ProxyFactory common.Address
	RelayHub     common.Address
	GasLimit     uint64
	NonceType    Scheme
	DryRun       bool
}

// Submitter implements ports.MergeSubmitter through relayer-v2.
// Converts go as PROXY (Scheme B), pair merges as SAFE (Scheme A).
type Submitter struct {
	client  *Client
	signer  *Signer
	encoder *onchain.Encoder
	cfg     SubmitterConfig
}

// NewSubmitter creates a Submitter, filling zero-valued config with defaults.
func NewSubmitter(client *Client, signer *Signer, enc *onchain.Encoder, cfg SubmitterConfig) *Submitter {
	if cfg.RelayAccount == (common.Address{}) {
		cfg.RelayAccount = signer.Address()
	}
	if cfg.ProxyFactory == (common.Address{}) {
		cfg.ProxyFactory = common.HexToAddress(DefaultProxyFactory)
	}
	if cfg.RelayHub == (common.Address{}) {
		cfg.RelayHub = common.HexToAddress(DefaultRelayHub)
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultProxyGasLimit
	}
	if cfg.NonceType == "" {
		cfg.NonceType = SchemeSafe
	}
	return &Submitter{client: client, signer: signer, encoder: enc, cfg: cfg}
}

// SubmitConvert relays proxy([convertPositions]) through the proxy factory.
func (s *Submitter) SubmitConvert(ctx context.Context, req domain.ConvertRequest) (domain.Submission, error) {
	amount := onchain.BaseUnits(req.Amount)
	sub := domain.Submission{
		ID:          uuid.New().String(),
		Kind:        domain.KindConvert,
		Scheme:      string(SchemeProxy),
		EventSlug:   req.EventSlug,
		Target:      req.MarketID,
		IndexSet:    req.IndexSet.String(),
		Amount:      req.Amount,
		BaseUnits:   amount.String(),
		DryRun:      s.cfg.DryRun,
		SubmittedAt: time.Now().UTC(),
	}

	data, err := s.encoder.ConvertProxyCall(req.MarketID, req.IndexSet, amount)
	if err != nil {
		return fail(sub, err)
	}

	info, err := s.client.RelayPayload(ctx, s.cfg.RelayAccount.Hex(), s.cfg.NonceType)
	if err != nil {
		return fail(sub, err)
	}
	if !common.IsHexAddress(info.Address) {
		return fail(sub, fmt.Errorf("relay.SubmitConvert: %w: relay address %q", domain.ErrEncoding, info.Address))
	}
	sub.Nonce = fmt.Sprintf("%d", info.Nonce)

	tx := ProxyTx{
		From:       s.cfg.RelayAccount,
		To:         s.cfg.ProxyFactory,
		Data:       data,
		RelayerFee: big.NewInt(0),
		GasPrice:   big.NewInt(0),
		GasLimit:   new(big.Int).SetUint64(s.cfg.GasLimit),
		Nonce:      new(big.Int).SetUint64(info.Nonce),
		RelayHub:   s.cfg.RelayHub,
		Relay:      common.HexToAddress(info.Address),
	}
	sig, err := s.signer.Sign(tx)
	if err != nil {
		return fail(sub, err)
	}

	return s.submit(ctx, sub, proxyPayload(s.cfg.ProxyWallet, tx, info.Address, sig), tx.Hash())
}

// SubmitMerge relays a raw mergePositions as a Safe transaction of the proxy wallet.
func (s *Submitter) SubmitMerge(ctx context.Context, req domain.MergeRequest) (domain.Submission, error) {
	amount := onchain.BaseUnits(req.Amount)
	sub := domain.Submission{
		ID:          uuid.New().String(),
		Kind:        domain.KindMerge,
		Scheme:      string(SchemeSafe),
		EventSlug:   req.Slug,
		Target:      req.ConditionID,
		Amount:      req.Amount,
		BaseUnits:   amount.String(),
		DryRun:      s.cfg.DryRun,
		SubmittedAt: time.Now().UTC(),
	}

	data, err := s.encoder.MergeCall(req.ConditionID, amount)
	if err != nil {
		return fail(sub, err)
	}

	info, err := s.client.RelayPayload(ctx, s.cfg.RelayAccount.Hex(), SchemeSafe)
	if err != nil {
		return fail(sub, err)
	}
	sub.Nonce = fmt.Sprintf("%d", info.Nonce)

	tx := NewSafeTx(s.cfg.ProxyWallet, s.encoder.Addresses().ConditionalTokens, data, new(big.Int).SetUint64(info.Nonce))
	sig, err := s.signer.Sign(tx)
	if err != nil {
		return fail(sub, err)
	}

	return s.submit(ctx, sub, safePayload(s.cfg.RelayAccount, tx, sig), tx.Hash())
}

func (s *Submitter) submit(ctx context.Context, sub domain.Submission, payload MetaTransaction, digest common.Hash) (domain.Submission, error) {
	if s.cfg.DryRun {
		slog.Info("relay: dry run, payload not submitted",
			"kind", sub.Kind, "scheme", payload.Type, "target", sub.Target,
			"amount", sub.Amount, "nonce", payload.Nonce, "digest", digest.Hex())
		return sub, nil
	}

	body, err := s.client.Submit(ctx, payload)
	sub.Response = string(body)
	if err != nil {
		return fail(sub, err)
	}
	sub.TxHash = responseTxRef(body)

	slog.Info("relay: submitted",
		"kind", sub.Kind, "scheme", payload.Type, "event", sub.EventSlug, "target", sub.Target,
		"index_set", sub.IndexSet, "amount", sub.Amount, "nonce", payload.Nonce, "tx", sub.TxHash)
	return sub, nil
}

// responseTxRef extrae el hash o id de transacción si el relayer lo devuelve.
func responseTxRef(body json.RawMessage) string {
	var r struct {
		TransactionHash string `json:"transactionHash"`
		Hash            string `json:"hash"`
		TransactionID   string `json:"transactionID"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ""
	}
	switch {
	case r.TransactionHash != "":
		return r.TransactionHash
	case r.Hash != "":
		return r.Hash
	default:
		return r.TransactionID
	}
}

// ParseAddress validates a hex address from configuration.
func ParseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s: invalid address %q", domain.ErrEncoding, field, s)
	}
	return common.HexToAddress(s), nil
}

func fail(sub domain.Submission, err error) (domain.Submission, error) {
	sub.Error = err.Error()
	return sub, err
}
