package relay_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alejandrodnm/automerger/internal/adapters/relay"
	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sigWithV(v byte) []byte {
	sig := bytes.Repeat([]byte{0xab}, relay.SignatureLen)
	sig[64] = v
	return sig
}

func TestParseVMode(t *testing.T) {
	cases := map[string]relay.VMode{
		"":        relay.VModeBump4,
		"keep":    relay.VModeKeep,
		"01":      relay.VModeZeroOne,
		"27":      relay.VModeLegacy,
		" BUMP4 ": relay.VModeBump4,
		"force31": relay.VModeForce31,
	}
	for in, want := range cases {
		got, err := relay.ParseVMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := relay.ParseVMode("bump5")
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestPackSignature_Modes(t *testing.T) {
	cases := []struct {
		mode relay.VMode
		in   byte
		want byte
	}{
		{relay.VModeKeep, 27, 27},
		{relay.VModeKeep, 1, 1},
		{relay.VModeZeroOne, 27, 0},
		{relay.VModeZeroOne, 28, 1},
		{relay.VModeZeroOne, 0, 0},
		{relay.VModeLegacy, 0, 27},
		{relay.VModeLegacy, 1, 28},
		{relay.VModeLegacy, 28, 28},
		{relay.VModeBump4, 27, 31},
		{relay.VModeBump4, 28, 32},
		{relay.VModeBump4, 1, 1},
		{relay.VModeForce31, 28, 31},
		{relay.VModeForce31, 0, 31},
	}
	for _, tc := range cases {
		in := sigWithV(tc.in)
		out, err := relay.PackSignature(in, tc.mode)
		require.NoError(t, err)
		assert.Equal(t, tc.want, out[64], "%s v=%d", tc.mode, tc.in)
		assert.Equal(t, in[:64], out[:64])
		assert.Equal(t, tc.in, in[64], "input must not be modified")
	}
}

func TestPackSignature_RejectsBadLength(t *testing.T) {
	_, err := relay.PackSignature(make([]byte, 64), relay.VModeKeep)
	assert.ErrorIs(t, err, domain.ErrEncoding)

	_, err = relay.PackSignature(make([]byte, 66), relay.VModeBump4)
	assert.ErrorIs(t, err, domain.ErrEncoding)

	_, err = relay.PackSignature(sigWithV(27), relay.VMode("nope"))
	assert.ErrorIs(t, err, domain.ErrEncoding)
}

func TestParseSignatureHex(t *testing.T) {
	h := strings.Repeat("ab", 64) + "1b"

	sig, err := relay.ParseSignatureHex("0x" + h)
	require.NoError(t, err)
	assert.Equal(t, byte(27), sig[64])

	sig2, err := relay.ParseSignatureHex(h)
	require.NoError(t, err)
	assert.Equal(t, sig, sig2)

	_, err = relay.ParseSignatureHex("0x" + h[:128])
	assert.ErrorIs(t, err, domain.ErrEncoding)

	_, err = relay.ParseSignatureHex(strings.Repeat("zz", 65))
	assert.ErrorIs(t, err, domain.ErrEncoding)
}
