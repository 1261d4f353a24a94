// Package keystore loads the owner key of the proxy wallet, either raw from
// the environment or from a password-encrypted JSON file.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	fileVersion      = 1
)

// keyFile es el formato en disco. Campos binarios en base64 estándar.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Config lists the key sources. RawPrivateKey wins over EncryptedKeyPath.
type Config struct {
	RawPrivateKey    string
	EncryptedKeyPath string
	KeyPassword      string
}

// Load resolves the private key. A missing or invalid key is ErrConfig.
func Load(cfg Config) (*ecdsa.PrivateKey, error) {
	switch {
	case cfg.RawPrivateKey != "":
		return parseHexKey(cfg.RawPrivateKey)

	case cfg.EncryptedKeyPath != "":
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return nil, fmt.Errorf("keystore.Load: %w: read %s: %v", domain.ErrConfig, cfg.EncryptedKeyPath, err)
		}
		keyHex, err := Decrypt(data, cfg.KeyPassword)
		if err != nil {
			return nil, fmt.Errorf("keystore.Load: %w", err)
		}
		return parseHexKey(keyHex)

	default:
		return nil, fmt.Errorf("keystore.Load: %w: no private key configured (PRIVATE_KEY or key file)", domain.ErrConfig)
	}
}

// Encrypt seals a hex private key with PBKDF2-HMAC-SHA256 + AES-256-GCM and
// returns the JSON file contents.
func Encrypt(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("keystore.Encrypt: %w: empty password", domain.ErrConfig)
	}
	key, err := parseHexKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keystore.Encrypt: salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keystore.Encrypt: nonce: %w", err)
	}

	out := keyFile{
		Version:    fileVersion,
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, crypto.FromECDSA(key), nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decrypt opens a file produced by Encrypt and returns the key as hex.
func Decrypt(data []byte, password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("keystore.Decrypt: %w: KEY_PASSWORD is empty", domain.ErrConfig)
	}

	var f keyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("keystore.Decrypt: %w: parse key file: %v", domain.ErrConfig, err)
	}
	if f.Version != fileVersion {
		return "", fmt.Errorf("keystore.Decrypt: %w: unsupported key file version %d", domain.ErrConfig, f.Version)
	}

	salt, err1 := base64.StdEncoding.DecodeString(f.Salt)
	nonce, err2 := base64.StdEncoding.DecodeString(f.Nonce)
	ct, err3 := base64.StdEncoding.DecodeString(f.Ciphertext)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", fmt.Errorf("keystore.Decrypt: %w: malformed key file", domain.ErrConfig)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("keystore.Decrypt: %w: bad nonce length %d", domain.ErrConfig, len(nonce))
	}
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("keystore.Decrypt: %w: wrong password or corrupted file", domain.ErrConfig)
	}
	return hex.EncodeToString(plain), nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("keystore: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keystore: gcm: %w", err)
	}
	return gcm, nil
}

func parseHexKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("keystore: %w: invalid private key: %v", domain.ErrConfig, err)
	}
	return key, nil
}
