package onchain

// calls.go: ABI encoding of the conditional-token calls sent on behalf of a
// Polymarket proxy wallet.
//
//   mergePositions(address,bytes32,bytes32,uint256[],uint256)  CTF: Yes+No pair → USDC.e
//   convertPositions(bytes32,uint256,uint256)                  NegRiskAdapter: No set → Yes complement + USDC.e
//   proxy((uint8,address,uint256,bytes)[])                     proxy factory envelope
//
// Layouts are contractual: the relayer and the contracts reject any byte
// that differs, so every shape here is pinned by golden calldata in tests.

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	orderconfig "github.com/polymarket/go-order-utils/pkg/config"
	"github.com/shopspring/decimal"
)

const (
	polygonChainID = int64(137)

	// callTypeCall is the proxy envelope code for a plain CALL (2 would be DELEGATECALL).
	callTypeCall = uint8(1)

	// Conditional tokens and USDC.e use 6 decimals.
	baseUnitDecimals = 6
)

// Contract ABIs
var (
	ctfABI     abi.ABI
	negRiskABI abi.ABI
	proxyABI   abi.ABI
)

func init() {
	var err error

	ctfABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "mergePositions",
			"type": "function",
			"inputs": [
				{"name": "collateralToken", "type": "address"},
				{"name": "parentCollectionId", "type": "bytes32"},
				{"name": "conditionId", "type": "bytes32"},
				{"name": "partition", "type": "uint256[]"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("ctf abi parse: " + err.Error())
	}

	negRiskABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "convertPositions",
			"type": "function",
			"inputs": [
				{"name": "marketId", "type": "bytes32"},
				{"name": "indexSet", "type": "uint256"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("neg risk adapter abi parse: " + err.Error())
	}

	proxyABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "proxy",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{
					"name": "calls",
					"type": "tuple[]",
					"components": [
						{"name": "typeCode", "type": "uint8"},
						{"name": "to", "type": "address"},
						{"name": "value", "type": "uint256"},
						{"name": "data", "type": "bytes"}
					]
				}
			],
			"outputs": [{"name": "returnValues", "type": "bytes[]"}]
		}
	]`))
	if err != nil {
		panic("proxy factory abi parse: " + err.Error())
	}
}

// ProxyCall is one entry of the proxy factory envelope. Field names follow
// the ABI components so go-ethereum can pack the tuple.
type ProxyCall struct {
	TypeCode uint8
	To       common.Address
	Value    *big.Int
	Data     []byte
}

// Addresses are the contracts the encoder targets.
type Addresses struct {
	Collateral        common.Address
	ConditionalTokens common.Address
	// ConvertTarget receives convertPositions. Production uses the NegRiskAdapter.
	ConvertTarget common.Address
}

// DefaultAddresses returns the Polygon mainnet contracts published by
// go-order-utils.
func DefaultAddresses() (Addresses, error) {
	contracts, err := orderconfig.GetContracts(polygonChainID)
	if err != nil {
		return Addresses{}, fmt.Errorf("onchain: get contracts: %w", err)
	}
	return Addresses{
		Collateral:        contracts.Collateral,
		ConditionalTokens: contracts.Conditional,
		ConvertTarget:     contracts.NegRiskAdapter,
	}, nil
}

// Encoder builds calldata for the merge and convert paths.
type Encoder struct {
	addrs Addresses
}

// NewEncoder creates an Encoder for the given contracts.
func NewEncoder(addrs Addresses) *Encoder {
	return &Encoder{addrs: addrs}
}

// Addresses returns the contracts the encoder targets.
func (e *Encoder) Addresses() Addresses {
	return e.addrs
}

// MergeCall encodes mergePositions(collateral, 0x00…, conditionID, [1,2], amount).
// amount is in base units.
func (e *Encoder) MergeCall(conditionID string, amount *big.Int) ([]byte, error) {
	condBytes, err := hexToBytes32(conditionID)
	if err != nil {
		return nil, fmt.Errorf("onchain.MergeCall: condition id: %w", err)
	}
	if err := checkAmount(amount); err != nil {
		return nil, fmt.Errorf("onchain.MergeCall: %w", err)
	}

	partition := []*big.Int{big.NewInt(1), big.NewInt(2)}
	data, err := ctfABI.Pack("mergePositions",
		e.addrs.Collateral,
		[32]byte{},
		condBytes,
		partition,
		amount,
	)
	if err != nil {
		return nil, fmt.Errorf("onchain.MergeCall: pack: %w: %v", domain.ErrEncoding, err)
	}
	return data, nil
}

// ConvertCall encodes convertPositions(marketID, indexSet, amount).
// amount is in base units.
func (e *Encoder) ConvertCall(marketID string, indexSet domain.IndexSet, amount *big.Int) ([]byte, error) {
	marketBytes, err := hexToBytes32(marketID)
	if err != nil {
		return nil, fmt.Errorf("onchain.ConvertCall: market id: %w", err)
	}
	if indexSet.IsZero() {
		return nil, fmt.Errorf("onchain.ConvertCall: %w: empty index set", domain.ErrInvalidInput)
	}
	if err := checkAmount(amount); err != nil {
		return nil, fmt.Errorf("onchain.ConvertCall: %w", err)
	}

	data, err := negRiskABI.Pack("convertPositions", marketBytes, indexSet.Big(), amount)
	if err != nil {
		return nil, fmt.Errorf("onchain.ConvertCall: pack: %w: %v", domain.ErrEncoding, err)
	}
	return data, nil
}

// MergeProxyCall wraps MergeCall in the proxy envelope targeting the CTF.
func (e *Encoder) MergeProxyCall(conditionID string, amount *big.Int) ([]byte, error) {
	inner, err := e.MergeCall(conditionID, amount)
	if err != nil {
		return nil, err
	}
	return ProxyCalldata(Call(e.addrs.ConditionalTokens, inner))
}

// ConvertProxyCall wraps ConvertCall in the proxy envelope targeting the
// convert target.
func (e *Encoder) ConvertProxyCall(marketID string, indexSet domain.IndexSet, amount *big.Int) ([]byte, error) {
	inner, err := e.ConvertCall(marketID, indexSet, amount)
	if err != nil {
		return nil, err
	}
	return ProxyCalldata(Call(e.addrs.ConvertTarget, inner))
}

// Call builds a plain CALL entry with zero value.
func Call(to common.Address, data []byte) ProxyCall {
	return ProxyCall{
		TypeCode: callTypeCall,
		To:       to,
		Value:    big.NewInt(0),
		Data:     data,
	}
}

// ProxyCalldata encodes proxy(calls).
func ProxyCalldata(calls ...ProxyCall) ([]byte, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("onchain.ProxyCalldata: %w: no calls", domain.ErrInvalidInput)
	}
	data, err := proxyABI.Pack("proxy", calls)
	if err != nil {
		return nil, fmt.Errorf("onchain.ProxyCalldata: pack: %w: %v", domain.ErrEncoding, err)
	}
	return data, nil
}

// BaseUnits converts a token size to base units, floor(size * 10^6).
func BaseUnits(size decimal.Decimal) *big.Int {
	return size.Shift(baseUnitDecimals).Floor().BigInt()
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if amount.BitLen() > 256 {
		return fmt.Errorf("%w: amount overflows uint256", domain.ErrEncoding)
	}
	return nil
}

// hexToBytes32 converts a 0x-prefixed hex string to [32]byte.
func hexToBytes32(s string) ([32]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return [32]byte{}, fmt.Errorf("%w: expected 64 hex chars, got %d", domain.ErrEncoding, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}
	var arr [32]byte
	copy(arr[:], b)
	return arr, nil
}
