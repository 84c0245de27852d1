package intunewin

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	keySize    = 32
	macKeySize = 32
	ivSize     = aes.BlockSize
	macSize    = sha256.Size
)

// material is the per-build encryption material. It never leaves the package
// except base64 encoded inside Metadata.
type material struct {
	key    []byte
	macKey []byte
	iv     []byte
}

// newMaterial draws a fresh key, MAC key and IV from random.
func newMaterial(random io.Reader) (*material, error) {
	m := &material{
		key:    make([]byte, keySize),
		macKey: make([]byte, macKeySize),
		iv:     make([]byte, ivSize),
	}

	for _, buf := range [][]byte{m.key, m.macKey, m.iv} {
		if _, err := io.ReadFull(random, buf); err != nil {
			return nil, fmt.Errorf("%w: generate encryption material: %w", ErrCrypto, err)
		}
	}

	return m, nil
}

// encryptCBC encrypts plaintext with AES-CBC and PKCS#7 padding.
func encryptCBC(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	padded := pkcs7Pad(plaintext, block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, nil
}

// decryptCBC reverses encryptCBC.
func decryptCBC(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCrypto, err)
	}

	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrMalformed, len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext, block.BlockSize())
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize

	padded := make([]byte, len(data), len(data)+padding)
	copy(padded, data)

	return append(padded, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrMalformed)
	}

	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("%w: bad padding", ErrMalformed)
	}

	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("%w: bad padding", ErrMalformed)
		}
	}

	return data[:len(data)-padding], nil
}

// computeMAC returns HMAC-SHA256 of data under key.
func computeMAC(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)

	return h.Sum(nil)
}

// digest returns the base64 SHA-256 of data.
func digest(data []byte) string {
	sum := sha256.Sum256(data)

	return encode(sum[:])
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decode(field, value string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, field, err)
	}

	return b, nil
}
