package keystore_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alejandrodnm/automerger/internal/adapters/keystore"
	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hardhat account #0.
const (
	testKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestLoad_RawKey(t *testing.T) {
	for _, raw := range []string{testKeyHex, "0x" + testKeyHex, " " + testKeyHex + "\n"} {
		key, err := keystore.Load(keystore.Config{RawPrivateKey: raw})
		require.NoError(t, err)
		assert.Equal(t, testAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())
	}
}

func TestLoad_InvalidRawKey(t *testing.T) {
	_, err := keystore.Load(keystore.Config{RawPrivateKey: "0xnothex"})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestLoad_NothingConfigured(t *testing.T) {
	_, err := keystore.Load(keystore.Config{})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	data, err := keystore.Encrypt(testKeyHex, "s3cret")
	require.NoError(t, err)

	var f map[string]any
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, testAddress, f["address"])
	assert.NotContains(t, string(data), testKeyHex)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	key, err := keystore.Load(keystore.Config{EncryptedKeyPath: path, KeyPassword: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, testAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())

	_, err = keystore.Load(keystore.Config{EncryptedKeyPath: path, KeyPassword: "wrong"})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestLoad_RawKeyWinsOverFile(t *testing.T) {
	key, err := keystore.Load(keystore.Config{
		RawPrivateKey:    testKeyHex,
		EncryptedKeyPath: "/does/not/exist.json",
	})
	require.NoError(t, err)
	assert.Equal(t, testAddress, crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func TestEncrypt_EmptyPassword(t *testing.T) {
	_, err := keystore.Encrypt(testKeyHex, "")
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestDecrypt_Malformed(t *testing.T) {
	_, err := keystore.Decrypt([]byte(`{"version":2}`), "pw")
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, err = keystore.Decrypt([]byte(`not json`), "pw")
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := keystore.Load(keystore.Config{EncryptedKeyPath: "/does/not/exist.json", KeyPassword: "pw"})
	assert.ErrorIs(t, err, domain.ErrConfig)
}
