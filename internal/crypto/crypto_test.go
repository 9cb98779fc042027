package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-process-secret"

// быстрый дериватор для тестов (минимально допустимое число итераций)
func testDeriver() *KeyDeriver {
	return NewKeyDeriver(testSecret, MinIterations)
}

func TestKeyDeriver_DeterministicAndIsolated(t *testing.T) {
	d := testDeriver()

	k1, err := d.DeriveKey(1)
	require.NoError(t, err)
	assert.Len(t, k1, KeyLen)

	again, err := d.DeriveKey(1)
	require.NoError(t, err)
	assert.Equal(t, k1, again, "same owner must yield the same key")

	k2, err := d.DeriveKey(2)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2, "different owners must yield different keys")

	// другой секрет — другой ключ для того же владельца
	other, err := NewKeyDeriver("another-process-secret", MinIterations).DeriveKey(1)
	require.NoError(t, err)
	assert.NotEqual(t, k1, other)
}

func TestKeyDeriver_ConfigurationErrors(t *testing.T) {
	cases := map[string]*KeyDeriver{
		"empty secret":   NewKeyDeriver("", MinIterations),
		"short secret":   NewKeyDeriver("short", MinIterations),
		"few iterations": NewKeyDeriver(testSecret, 1000),
		"nil deriver":    nil,
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, d.Validate(), ErrConfiguration)
			key, err := d.DeriveKey(1)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Nil(t, key)
		})
	}
}

func TestKeyDeriver_InvalidOwner(t *testing.T) {
	_, err := testDeriver().DeriveKey(0)
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestKeyDeriver_StringRedactsSecret(t *testing.T) {
	s := testDeriver().String()
	assert.NotContains(t, s, testSecret)
	assert.Contains(t, s, "redacted")
}

func TestWipeKey(t *testing.T) {
	key, err := testDeriver().DeriveKey(3)
	require.NoError(t, err)
	WipeKey(key)
	assert.Equal(t, make([]byte, KeyLen), key)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := testDeriver().DeriveKey(1)
	require.NoError(t, err)

	inputs := [][]byte{
		{},
		[]byte("a"),
		[]byte("0123456789"),
		bytes.Repeat([]byte{0xAB}, 64*1024+7),
	}
	for _, in := range inputs {
		s, err := Encrypt(in, key)
		require.NoError(t, err)
		assert.Len(t, s.Nonce, NonceSize)
		assert.Len(t, s.AuthTag, TagSize)
		assert.Len(t, s.Ciphertext, len(in))

		out, err := Decrypt(s.Ciphertext, s.Nonce, s.AuthTag, key)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(in, out), "round-trip mismatch for %d bytes", len(in))
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key, err := testDeriver().DeriveKey(1)
	require.NoError(t, err)
	plain := []byte("same evidence twice")

	a, err := Encrypt(plain, key)
	require.NoError(t, err)
	b, err := Encrypt(plain, key)
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key, err := testDeriver().DeriveKey(1)
	require.NoError(t, err)
	s, err := Encrypt([]byte("chain of evidence"), key)
	require.NoError(t, err)

	// каждый бит шифртекста
	for i := 0; i < len(s.Ciphertext)*8; i++ {
		ct := bytes.Clone(s.Ciphertext)
		ct[i/8] ^= 1 << (i % 8)
		out, err := Decrypt(ct, s.Nonce, s.AuthTag, key)
		require.ErrorIs(t, err, ErrIntegrity, "ciphertext bit %d", i)
		require.Nil(t, out)
	}
	// каждый бит тега
	for i := 0; i < len(s.AuthTag)*8; i++ {
		tag := bytes.Clone(s.AuthTag)
		tag[i/8] ^= 1 << (i % 8)
		out, err := Decrypt(s.Ciphertext, s.Nonce, tag, key)
		require.ErrorIs(t, err, ErrIntegrity, "tag bit %d", i)
		require.Nil(t, out)
	}
	// nonce
	nonce := bytes.Clone(s.Nonce)
	nonce[0] ^= 0x01
	_, err = Decrypt(s.Ciphertext, nonce, s.AuthTag, key)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestDecrypt_WrongOwnerKey(t *testing.T) {
	d := testDeriver()
	k1, err := d.DeriveKey(1)
	require.NoError(t, err)
	k2, err := d.DeriveKey(2)
	require.NoError(t, err)

	s, err := Encrypt([]byte("owner one only"), k1)
	require.NoError(t, err)
	out, err := Decrypt(s.Ciphertext, s.Nonce, s.AuthTag, k2)
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Nil(t, out)
}

func TestDecrypt_MalformedInputs(t *testing.T) {
	key, err := testDeriver().DeriveKey(1)
	require.NoError(t, err)
	s, err := Encrypt([]byte("x"), key)
	require.NoError(t, err)

	_, err = Decrypt(s.Ciphertext, []byte{1, 2, 3}, s.AuthTag, key)
	assert.ErrorIs(t, err, ErrIntegrity)
	_, err = Decrypt(s.Ciphertext, s.Nonce, s.AuthTag[:4], key)
	assert.ErrorIs(t, err, ErrIntegrity)
	_, err = Decrypt(s.Ciphertext, s.Nonce, nil, key)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestEncryptDecrypt_InvalidKeyLen(t *testing.T) {
	_, err := Encrypt([]byte("data"), []byte("short"))
	assert.Error(t, err)
	_, err = Decrypt([]byte{1}, make([]byte, NonceSize), make([]byte, TagSize), []byte("short"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrIntegrity)
}

func TestDigest(t *testing.T) {
	// известный вектор SHA-256("")
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
	assert.Equal(t, Digest([]byte("abc")), Digest([]byte("abc")))
	assert.NotEqual(t, Digest([]byte("abc")), Digest([]byte("abd")))
	assert.Len(t, Digest([]byte("abc")), 64)

	d, n, err := DigestReader(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, Digest([]byte("abc")), d)
}

func TestEqualDigest(t *testing.T) {
	d := Digest([]byte("evidence"))
	assert.True(t, EqualDigest(d, strings.ToUpper(d)))
	assert.False(t, EqualDigest(d, Digest([]byte("other"))))
	assert.False(t, EqualDigest(d, ""))
}
