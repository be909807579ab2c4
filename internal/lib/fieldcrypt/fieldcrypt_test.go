package fieldcrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey      = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testIndexKey = "blind-index-secret"
)

func newTestCodec(t *testing.T) *Codec {
	c, err := New(testKey, testIndexKey)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		hexKey   string
		indexKey string
		wantErr  bool
	}{
		{name: "valid key", hexKey: testKey, indexKey: testIndexKey, wantErr: false},
		{name: "empty key", hexKey: "", indexKey: testIndexKey, wantErr: true},
		{name: "short key", hexKey: "deadbeef", indexKey: testIndexKey, wantErr: true},
		{name: "not hex", hexKey: strings.Repeat("zz", 32), indexKey: testIndexKey, wantErr: true},
		{name: "empty index key", hexKey: testKey, indexKey: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.hexKey, tt.indexKey)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	plaintexts := []string{
		"+7 900 123-45-67",
		"7707083893",
		"short",
		"тестовая строка с юникодом",
		strings.Repeat("x", 1000),
	}
	for _, p := range plaintexts {
		stored, err := c.Encrypt(p)
		require.NoError(t, err)

		parts := strings.SplitN(stored, ":", 2)
		require.Len(t, parts, 2, "stored value must be iv:ciphertext")
		assert.Len(t, parts[0], 32, "iv must be 16 hex-encoded bytes")

		got, kind := c.Decrypt(stored)
		assert.Equal(t, KindDecrypted, kind)
		assert.Equal(t, p, got)
	}
}

func TestEncrypt_RandomizedIV(t *testing.T) {
	c := newTestCodec(t)

	first, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := c.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "two encryptions of the same plaintext must differ")

	got1, kind1 := c.Decrypt(first)
	got2, kind2 := c.Decrypt(second)
	assert.Equal(t, KindDecrypted, kind1)
	assert.Equal(t, KindDecrypted, kind2)
	assert.Equal(t, got1, got2)
}

func TestEncrypt_EmptyPassthrough(t *testing.T) {
	c := newTestCodec(t)
	stored, err := c.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", stored)
}

func TestDecrypt_LegacyPassthrough(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name   string
		stored string
	}{
		{name: "no separator", stored: "+79001234567"},
		{name: "non-hex iv", stored: "not-hex:deadbeef"},
		{name: "wrong iv length", stored: "deadbeef:deadbeefdeadbeef"},
		{name: "non-hex ciphertext", stored: "000102030405060708090a0b0c0d0e0f:zzzz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind := c.Decrypt(tt.stored)
			assert.Equal(t, KindLegacy, kind)
			assert.Equal(t, tt.stored, got)
		})
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	c := newTestCodec(t)
	other, err := New(strings.Repeat("ff", 32), testIndexKey)
	require.NoError(t, err)

	stored, err := c.Encrypt("sensitive value")
	require.NoError(t, err)

	got, kind := other.Decrypt(stored)
	assert.Equal(t, KindFailed, kind)
	assert.Equal(t, stored, got, "failed decryption returns the original opaque string")
}

func TestDecrypt_CorruptedCiphertext(t *testing.T) {
	c := newTestCodec(t)
	stored, err := c.Encrypt("sensitive value")
	require.NoError(t, err)

	// ломаем последний блок, сохраняя hex-форму
	corrupted := stored[:len(stored)-2] + "00"
	if corrupted == stored {
		corrupted = stored[:len(stored)-2] + "11"
	}
	_, kind := c.Decrypt(corrupted)
	assert.Equal(t, KindFailed, kind)
}

func TestBlindIndex_Deterministic(t *testing.T) {
	c := newTestCodec(t)

	first := c.BlindIndex("7707083893")
	second := c.BlindIndex("7707083893")
	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "hex-encoded 256-bit digest")

	// новый Codec с теми же ключами — тот же индекс (нет процессной соли)
	fresh := newTestCodec(t)
	assert.Equal(t, first, fresh.BlindIndex("7707083893"))
}

func TestBlindIndex_Normalization(t *testing.T) {
	c := newTestCodec(t)

	assert.Equal(t, c.BlindIndex("7707083893"), c.BlindIndex("  7707083893\t"))
	assert.NotEqual(t, c.BlindIndex("7707083893"), c.BlindIndex("7707083894"))
	assert.Equal(t, "", c.BlindIndex("   "))
}

func TestBlindIndex_KeyedDigest(t *testing.T) {
	c := newTestCodec(t)
	other, err := New(testKey, "another-index-key")
	require.NoError(t, err)

	assert.NotEqual(t, c.BlindIndex("7707083893"), other.BlindIndex("7707083893"))
}
