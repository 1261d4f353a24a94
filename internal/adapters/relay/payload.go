package relay

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MetaTransaction is the body POSTed to relayer /submit.
type MetaTransaction struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	ProxyWallet     string          `json:"proxyWallet"`
	Data            string          `json:"data"`
	Nonce           string          `json:"nonce"`
	Signature       string          `json:"signature"`
	SignatureParams SignatureParams `json:"signatureParams"`
	Type            Scheme          `json:"type"`
}

// SignatureParams carries the fields the relayer needs to rebuild the digest.
// SAFE uses the safe* group, PROXY the relay* group.
type SignatureParams struct {
	GasPrice string `json:"gasPrice"`

	// SAFE
	Operation      string `json:"operation,omitempty"`
	SafeTxnGas     string `json:"safeTxnGas,omitempty"`
	BaseGas        string `json:"baseGas,omitempty"`
	GasToken       string `json:"gasToken,omitempty"`
	RefundReceiver string `json:"refundReceiver,omitempty"`

	// PROXY
	RelayerFee string `json:"relayerFee,omitempty"`
	GasLimit   string `json:"gasLimit,omitempty"`
	RelayHub   string `json:"relayHub,omitempty"`
	Relay      string `json:"relay,omitempty"`
}

// safePayload builds the SAFE body for a signed SafeTx.
func safePayload(from common.Address, tx SafeTx, sig []byte) MetaTransaction {
	return MetaTransaction{
		From:        from.Hex(),
		To:          tx.To.Hex(),
		ProxyWallet: tx.Safe.Hex(),
		Data:        hexutil.Encode(tx.Data),
		Nonce:       decimalString(tx.Nonce),
		Signature:   hexutil.Encode(sig),
		SignatureParams: SignatureParams{
			GasPrice:       decimalString(tx.GasPrice),
			Operation:      decimalString(new(big.Int).SetUint64(uint64(tx.Operation))),
			SafeTxnGas:     decimalString(tx.SafeTxGas),
			BaseGas:        decimalString(tx.BaseGas),
			GasToken:       tx.GasToken.Hex(),
			RefundReceiver: tx.RefundReceiver.Hex(),
		},
		Type: SchemeSafe,
	}
}

// proxyPayload builds the PROXY body. relay is echoed exactly as the relayer
// returned it.
func proxyPayload(proxyWallet common.Address, tx ProxyTx, relay string, sig []byte) MetaTransaction {
	return MetaTransaction{
		From:        tx.From.Hex(),
		To:          tx.To.Hex(),
		ProxyWallet: proxyWallet.Hex(),
		Data:        hexutil.Encode(tx.Data),
		Nonce:       decimalString(tx.Nonce),
		Signature:   hexutil.Encode(sig),
		SignatureParams: SignatureParams{
			GasPrice:   decimalString(tx.GasPrice),
			RelayerFee: decimalString(tx.RelayerFee),
			GasLimit:   decimalString(tx.GasLimit),
			RelayHub:   tx.RelayHub.Hex(),
			Relay:      relay,
		},
		Type: SchemeProxy,
	}
}

func decimalString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
