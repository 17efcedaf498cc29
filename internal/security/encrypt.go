package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fernet/fernet-go"
)

// aesPrefix marks payloads sealed by Encrypt. Anything without it is treated
// as a Fernet token written by an earlier deployment.
const aesPrefix = "v1:"

var ErrUndecryptable = errors.New("message payload cannot be decrypted")

// Encryptor seals message bodies at rest with AES-256-GCM and can still open
// Fernet tokens produced under the legacy keys.
type Encryptor struct {
	aead   cipher.AEAD
	legacy []*fernet.Key
}

// NewEncryptor derives the AES key from key with SHA-256, so secrets of any
// length work. key itself is also tried as a Fernet key when it parses as one.
func NewEncryptor(key []byte, legacyKeys []string) (*Encryptor, error) {
	if len(key) == 0 {
		return nil, errors.New("encryption key must not be empty")
	}
	sum := sha256.Sum256(key)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	e := &Encryptor{aead: aead}
	for _, raw := range append([]string{string(key)}, legacyKeys...) {
		if k, err := fernet.DecodeKey(strings.TrimSpace(raw)); err == nil {
			e.legacy = append(e.legacy, k)
		}
	}
	return e, nil
}

func (e *Encryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return aesPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	if rest, ok := strings.CutPrefix(enc, aesPrefix); ok {
		return e.openAES(rest)
	}
	if len(e.legacy) > 0 {
		// ttl 0 disables the age check: stored messages never expire.
		if plain := fernet.VerifyAndDecrypt([]byte(enc), 0, e.legacy); plain != nil {
			return string(plain), nil
		}
	}
	return "", ErrUndecryptable
}

func (e *Encryptor) openAES(b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", ErrUndecryptable
	}
	ns := e.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrUndecryptable
	}
	plain, err := e.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrUndecryptable
	}
	return string(plain), nil
}
