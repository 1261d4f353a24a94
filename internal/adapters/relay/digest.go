package relay

// digest.go: the two pre-image schemes the Polymarket relayer verifies.
//
// Scheme A (SAFE) is the Safe{Wallet} EIP-712 SafeTx hash with a domain made
// of chainId and verifyingContract only. Scheme B (PROXY) is the GSN-style
// "rlx:" packed pre-image used by the proxy wallet factory. Any change in
// field order or width produces a digest the relayer silently rejects.

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Scheme is the relayer transaction type tag.
type Scheme string

const (
	SchemeSafe  Scheme = "SAFE"
	SchemeProxy Scheme = "PROXY"
)

// PolygonChainID is the chain the relayer operates on.
const PolygonChainID = int64(137)

var (
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(uint256 chainId,address verifyingContract)"))
	safeTxTypeHash = crypto.Keccak256Hash([]byte(
		"SafeTx(address to,uint256 value,bytes data,uint8 operation," +
			"uint256 safeTxGas,uint256 baseGas,uint256 gasPrice," +
			"address gasToken,address refundReceiver,uint256 nonce)",
	))

	proxyTag = []byte("rlx:")
)

// Digest is a relay pre-image hash. Implementations: SafeTx and ProxyTx.
type Digest interface {
	Hash() common.Hash
	Scheme() Scheme
	sealed()
}

// SafeTx is the Scheme A message.
type SafeTx struct {
	ChainID        *big.Int
	Safe           common.Address // verifyingContract: the proxy wallet
	To             common.Address
	Value          *big.Int
	Data           []byte
	Operation      uint8
	SafeTxGas      *big.Int
	BaseGas        *big.Int
	GasPrice       *big.Int
	GasToken       common.Address
	RefundReceiver common.Address
	Nonce          *big.Int
}

// NewSafeTx builds a zero-gas CALL from safe to `to` on Polygon.
func NewSafeTx(safe, to common.Address, data []byte, nonce *big.Int) SafeTx {
	return SafeTx{
		ChainID: big.NewInt(PolygonChainID),
		Safe:    safe,
		To:      to,
		Data:    data,
		Nonce:   nonce,
	}
}

// DomainSeparator returns keccak(typehash ‖ chainId ‖ verifyingContract).
func (t SafeTx) DomainSeparator() common.Hash {
	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		word(t.ChainID),
		addressWord(t.Safe),
	)
}

// StructHash hashes the ten SafeTx fields in declaration order. data is
// hashed as raw bytes.
func (t SafeTx) StructHash() common.Hash {
	return crypto.Keccak256Hash(
		safeTxTypeHash.Bytes(),
		addressWord(t.To),
		word(t.Value),
		crypto.Keccak256(t.Data),
		word(new(big.Int).SetUint64(uint64(t.Operation))),
		word(t.SafeTxGas),
		word(t.BaseGas),
		word(t.GasPrice),
		addressWord(t.GasToken),
		addressWord(t.RefundReceiver),
		word(t.Nonce),
	)
}

// Hash returns keccak(0x1901 ‖ domainSeparator ‖ structHash).
func (t SafeTx) Hash() common.Hash {
	return crypto.Keccak256Hash(
		[]byte{0x19, 0x01},
		t.DomainSeparator().Bytes(),
		t.StructHash().Bytes(),
	)
}

func (SafeTx) Scheme() Scheme { return SchemeSafe }

func (SafeTx) sealed() {}

// ProxyTx is the Scheme B message.
type ProxyTx struct {
	From       common.Address
	To         common.Address
	Data       []byte
	RelayerFee *big.Int
	GasPrice   *big.Int
	GasLimit   *big.Int
	Nonce      *big.Int
	RelayHub   common.Address
	Relay      common.Address
}

// Preimage returns "rlx:" ‖ from ‖ to ‖ data ‖ fee ‖ gasPrice ‖ gasLimit ‖
// nonce ‖ relayHub ‖ relay. Addresses are 20 bytes, integers 32 bytes
// big-endian.
func (t ProxyTx) Preimage() []byte {
	out := make([]byte, 0, len(proxyTag)+20*4+len(t.Data)+32*4)
	out = append(out, proxyTag...)
	out = append(out, t.From.Bytes()...)
	out = append(out, t.To.Bytes()...)
	out = append(out, t.Data...)
	out = append(out, word(t.RelayerFee)...)
	out = append(out, word(t.GasPrice)...)
	out = append(out, word(t.GasLimit)...)
	out = append(out, word(t.Nonce)...)
	out = append(out, t.RelayHub.Bytes()...)
	out = append(out, t.Relay.Bytes()...)
	return out
}

// Hash returns keccak(Preimage()).
func (t ProxyTx) Hash() common.Hash {
	return crypto.Keccak256Hash(t.Preimage())
}

func (ProxyTx) Scheme() Scheme { return SchemeProxy }

func (ProxyTx) sealed() {}

// word left-pads n to 32 bytes; nil is zero.
func word(n *big.Int) []byte {
	if n == nil {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(n.Bytes(), 32)
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), 32)
}
