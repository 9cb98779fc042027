package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// NonceSize — размер nonce AES‑GCM.
	NonceSize = 12
	// TagSize — размер тега аутентификации AES‑GCM.
	TagSize = 16
)

// ErrIntegrity — тег аутентификации не сошёлся: неверный ключ,
// повреждённый шифртекст или подменённый тег.
var ErrIntegrity = errors.New("authenticated decryption failed")

// Sealed — результат шифрования, поля хранятся раздельно.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	AuthTag    []byte
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("invalid key length: %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt шифрует plaintext с помощью AES‑GCM на заданном ключе.
// Nonce генерируется заново при каждом вызове.
func Encrypt(plaintext, key []byte) (Sealed, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return Sealed{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, fmt.Errorf("generate nonce: %w", err)
	}
	out := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(out) - gcm.Overhead()
	return Sealed{
		Ciphertext: out[:split:split],
		Nonce:      nonce,
		AuthTag:    out[split:],
	}, nil
}

// Decrypt расшифровывает шифртекст. При любой ошибке проверки возвращает
// ErrIntegrity и никогда не отдаёт частично расшифрованные данные.
func Decrypt(ciphertext, nonce, authTag, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: invalid nonce size", ErrIntegrity)
	}
	if len(authTag) != gcm.Overhead() {
		return nil, fmt.Errorf("%w: invalid tag size", ErrIntegrity)
	}
	sealed := make([]byte, 0, len(ciphertext)+len(authTag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, authTag...)
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	if plain == nil {
		plain = []byte{}
	}
	return plain, nil
}
