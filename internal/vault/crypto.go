package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/dws/control-plane/internal/apierr"
)

const domainLabel = "credential-vault-v1"

// minIVLen + minTagLen is the shortest a valid ciphertext can be; anything
// shorter is a data-corruption invariant violation (spec §7).
const minCiphertextLen = 12 + 16

// deriveKey derives a 32-byte AES-256 key per owner (spec §4.A):
// KDF(masterKey || lowercase(owner) || "credential-vault-v1").
func deriveKey(masterKey []byte, owner string) ([]byte, error) {
	info := []byte(strings.ToLower(owner) + domainLabel)
	r := hkdf.New(sha256.New, masterKey, nil, info)
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, apierr.Wrap(apierr.Encryption, "deriving owner key", err)
	}
	return key, nil
}

// encrypt seals plaintext under the owner-derived key, returning
// base64(iv(12B) || ct || tag(16B)) (spec §4.A, §9).
func encrypt(masterKey []byte, owner, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	key, err := deriveKey(masterKey, owner)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apierr.Wrap(apierr.Encryption, "constructing AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apierr.Wrap(apierr.Encryption, "constructing GCM", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", apierr.Wrap(apierr.Encryption, "generating IV", err)
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	out := make([]byte, 0, len(iv)+len(sealed))
	out = append(out, iv...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// decrypt reverses encrypt. A ciphertext shorter than minCiphertextLen is a
// data-corruption invariant violation and raises Integrity (spec §7).
func decrypt(masterKey []byte, owner, ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", apierr.Wrap(apierr.Integrity, "ciphertext is not valid base64", err)
	}
	if len(raw) < minCiphertextLen {
		return "", apierr.New(apierr.Integrity, "ciphertext shorter than iv+tag")
	}
	key, err := deriveKey(masterKey, owner)
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", apierr.Wrap(apierr.Encryption, "constructing AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", apierr.Wrap(apierr.Encryption, "constructing GCM", err)
	}
	ivLen := gcm.NonceSize()
	iv, sealed := raw[:ivLen], raw[ivLen:]
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", apierr.Wrap(apierr.Integrity, "authentication failed decrypting ciphertext", err)
	}
	return string(plain), nil
}
