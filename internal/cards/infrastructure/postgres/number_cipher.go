package postgres

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"cardbank/internal/cards/domain"
)

// ErrNumberKeyLength is returned when the master key is not 32 bytes.
var ErrNumberKeyLength = errors.New("card number key must be 32 bytes")

// NumberCipher encrypts card numbers at rest and derives a keyed lookup hash,
// so a number can be found or checked for uniqueness without decrypting rows.
// Both subkeys are derived from one master key with HKDF-SHA256.
type NumberCipher struct {
	aead    cipher.AEAD
	hashKey []byte
}

// NewNumberCipher derives the encryption and lookup keys from masterKey.
func NewNumberCipher(masterKey []byte) (*NumberCipher, error) {
	if len(masterKey) != 32 {
		return nil, ErrNumberKeyLength
	}

	encKey, err := deriveKey(masterKey, "cardbank card number encryption", chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	hashKey, err := deriveKey(masterKey, "cardbank card number lookup", 32)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return &NumberCipher{aead: aead, hashKey: hashKey}, nil
}

// Encrypt seals the number. The random nonce is prepended to the ciphertext.
func (c *NumberCipher) Encrypt(number domain.CardNumber) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+domain.CardNumberLength+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(number.Value()), nil), nil
}

// Decrypt opens a value produced by Encrypt and validates the result.
func (c *NumberCipher) Decrypt(ciphertext []byte) (domain.CardNumber, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return domain.CardNumber{}, fmt.Errorf("%w: ciphertext too short", domain.ErrCorruptData)
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return domain.CardNumber{}, fmt.Errorf("%w: decrypting card number: %v", domain.ErrCorruptData, err)
	}
	number, err := domain.ParseCardNumber(string(plain))
	if err != nil {
		return domain.CardNumber{}, fmt.Errorf("%w: stored card number: %v", domain.ErrCorruptData, err)
	}
	return number, nil
}

// Hash returns the HMAC-SHA256 lookup key for the number.
func (c *NumberCipher) Hash(number domain.CardNumber) []byte {
	mac := hmac.New(sha256.New, c.hashKey)
	mac.Write([]byte(number.Value()))
	return mac.Sum(nil)
}

func deriveKey(masterKey []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", info, err)
	}
	return key, nil
}
