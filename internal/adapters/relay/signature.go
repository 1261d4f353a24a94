package relay

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/alejandrodnm/automerger/internal/domain"
)

// VMode selects how the recovery byte of a Scheme A signature is rewritten
// before it is sent to the relayer.
type VMode string

const (
	VModeKeep    VMode = "keep"    // unchanged
	VModeZeroOne VMode = "01"      // 27/28 → 0/1
	VModeLegacy  VMode = "27"      // 0/1 → 27/28
	VModeBump4   VMode = "bump4"   // 27/28 → 31/32, eth_sign flavour of Safe signatures
	VModeForce31 VMode = "force31" // always 31
)

// SignatureLen is the length of an r ‖ s ‖ v signature.
const SignatureLen = 65

// ParseVMode validates a configured mode. Empty means bump4.
func ParseVMode(s string) (VMode, error) {
	switch m := VMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return VModeBump4, nil
	case VModeKeep, VModeZeroOne, VModeLegacy, VModeBump4, VModeForce31:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown v mode %q", domain.ErrConfig, s)
	}
}

// PackSignature returns r ‖ s ‖ v' where v' is v rewritten per mode.
// The input is not modified.
func PackSignature(sig []byte, mode VMode) ([]byte, error) {
	if len(sig) != SignatureLen {
		return nil, fmt.Errorf("%w: expected %d-byte signature, got %d", domain.ErrEncoding, SignatureLen, len(sig))
	}

	out := make([]byte, SignatureLen)
	copy(out, sig)

	v := out[64]
	switch mode {
	case VModeKeep:
	case VModeZeroOne:
		if v == 27 || v == 28 {
			v -= 27
		}
	case VModeLegacy:
		if v == 0 || v == 1 {
			v += 27
		}
	case VModeBump4:
		if v == 27 || v == 28 {
			v += 4
		}
	case VModeForce31:
		v = 31
	default:
		return nil, fmt.Errorf("%w: unknown v mode %q", domain.ErrEncoding, mode)
	}
	out[64] = v
	return out, nil
}

// ParseSignatureHex decodes a 130-char hex signature, with or without 0x.
func ParseSignatureHex(s string) ([]byte, error) {
	h := strings.TrimPrefix(s, "0x")
	if len(h) != 2*SignatureLen {
		return nil, fmt.Errorf("%w: expected 65-byte signature (130 hex chars), got %d", domain.ErrEncoding, len(h))
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("%w: signature hex: %v", domain.ErrEncoding, err)
	}
	return b, nil
}
