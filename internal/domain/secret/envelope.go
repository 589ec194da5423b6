package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	envelopeVersion = "v1"
	nonceSize       = 12 // standard GCM nonce length
	tagSize         = 16
)

// b64 rejects non-canonical encodings so every envelope string maps to
// exactly one byte sequence.
var b64 = base64.RawURLEncoding.Strict()

// DeriveKey derives a 32-byte AES-256 key from the configured seed using SHA-256.
func DeriveKey(seed string) []byte {
	h := sha256.Sum256([]byte(seed))
	return h[:]
}

// Cipher seals JSON payloads into versioned envelopes of the form
// "v1:<nonce>.<tag>.<ciphertext>". The key is fixed at construction.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds an AES-256-GCM cipher from a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("envelope key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &Cipher{aead: gcm}, nil
}

// Encrypt serializes payload as JSON and seals it under a fresh random nonce.
func (c *Cipher) Encrypt(payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext; the envelope carries them apart.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return envelopeVersion + ":" +
		b64.EncodeToString(nonce) + "." +
		b64.EncodeToString(tag) + "." +
		b64.EncodeToString(ct), nil
}

// Decrypt opens an envelope and returns its JSON object. It returns nil for
// any malformed, tampered or non-object envelope; callers treat nil as
// "secret unreadable".
func (c *Cipher) Decrypt(blob string) map[string]any {
	plaintext, err := c.open(blob)
	if err != nil {
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal(plaintext, &out); err != nil || out == nil {
		return nil
	}
	return out
}

// DecryptInto opens an envelope into dst, which must point to a struct or map.
// It reports false under the same conditions in which Decrypt returns nil.
func (c *Cipher) DecryptInto(blob string, dst any) bool {
	plaintext, err := c.open(blob)
	if err != nil {
		return false
	}
	if !bytes.HasPrefix(bytes.TrimSpace(plaintext), []byte("{")) {
		return false
	}
	return json.Unmarshal(plaintext, dst) == nil
}

var errMalformed = errors.New("malformed envelope")

func (c *Cipher) open(blob string) ([]byte, error) {
	rest, ok := strings.CutPrefix(blob, envelopeVersion+":")
	if !ok {
		return nil, errMalformed
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return nil, errMalformed
	}

	nonce, err := b64.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return nil, errMalformed
	}
	tag, err := b64.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, errMalformed
	}
	ct, err := b64.DecodeString(parts[2])
	if err != nil {
		return nil, errMalformed
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("gcm.Open: %w", err)
	}
	return plaintext, nil
}
