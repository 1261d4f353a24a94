package relay

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs relay digests with the owner key of the proxy wallet.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	vmode   VMode
}

// NewSigner creates a Signer. vmode applies to Scheme A signatures only.
func NewSigner(key *ecdsa.PrivateKey, vmode VMode) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		vmode:   vmode,
	}
}

// Address returns the signer's EOA.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign wraps the digest with the personal-message prefix, signs it and packs
// the signature the way the relayer expects for the digest's scheme:
// Scheme A gets the configured recovery-byte transform, Scheme B is sent raw.
func (s *Signer) Sign(d Digest) ([]byte, error) {
	raw, err := s.signPersonal(d.Hash())
	if err != nil {
		return nil, err
	}

	switch d.(type) {
	case SafeTx:
		return PackSignature(raw, s.vmode)
	case ProxyTx:
		return raw, nil
	default:
		return nil, fmt.Errorf("relay: %w: unsupported digest %T", domain.ErrEncoding, d)
	}
}

// signPersonal returns r ‖ s ‖ v with v in {27, 28}, and checks that the
// signature recovers to our own address.
func (s *Signer) signPersonal(h common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(h.Bytes()), s.key)
	if err != nil {
		return nil, fmt.Errorf("relay: sign: %w", err)
	}
	sig[64] += 27

	got, err := RecoverSigner(h, sig)
	if err != nil {
		return nil, err
	}
	if got != s.address {
		return nil, fmt.Errorf("relay: %w: recovered %s, want %s", domain.ErrDigestMismatch, got.Hex(), s.address.Hex())
	}
	return sig, nil
}

// RecoverSigner returns the address that produced sig over the
// personal-message wrap of h. Every recovery-byte encoding PackSignature
// produces is accepted; force31 drops the parity bit, so recovery may yield a
// different address.
func RecoverSigner(h common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLen {
		return common.Address{}, fmt.Errorf("relay: %w: expected %d-byte signature, got %d", domain.ErrEncoding, SignatureLen, len(sig))
	}

	norm := make([]byte, SignatureLen)
	copy(norm, sig)
	switch v := norm[64]; {
	case v >= 31:
		norm[64] = v - 31
	case v >= 27:
		norm[64] = v - 27
	}
	if norm[64] > 1 {
		return common.Address{}, fmt.Errorf("relay: %w: recovery byte %d", domain.ErrEncoding, sig[64])
	}

	pub, err := crypto.SigToPub(accounts.TextHash(h.Bytes()), norm)
	if err != nil {
		return common.Address{}, fmt.Errorf("relay: recover: %w: %v", domain.ErrEncoding, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
