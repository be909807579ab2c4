package protect

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/identity-guard/internal/lib/fieldcrypt"
	"github.com/magabrotheeeer/identity-guard/internal/models"
)

const (
	testKey      = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testIndexKey = "blind-index-secret"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestVault(t *testing.T) *Vault {
	codec, err := fieldcrypt.New(testKey, testIndexKey)
	require.NoError(t, err)
	return NewVault(codec, newNoopLogger(), nil, false)
}

func TestSeal(t *testing.T) {
	v := newTestVault(t)

	sealed, err := v.Seal("+79001234567")
	require.NoError(t, err)
	assert.NotEmpty(t, sealed.Ciphertext)
	assert.NotEqual(t, "+79001234567", sealed.Ciphertext)
	assert.Len(t, sealed.Index, 64)

	again, err := v.Seal("+79001234567")
	require.NoError(t, err)
	assert.NotEqual(t, sealed.Ciphertext, again.Ciphertext, "IV must be random per write")
	assert.Equal(t, sealed.Index, again.Index, "blind index must be deterministic")
}

func TestSeal_Empty(t *testing.T) {
	v := newTestVault(t)
	sealed, err := v.Seal("")
	require.NoError(t, err)
	assert.Equal(t, "", sealed.Ciphertext)
	assert.Equal(t, "", sealed.Index)
}

func TestChanged(t *testing.T) {
	v := newTestVault(t)
	sealed, err := v.Seal("+79001234567")
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext string
		stored    string
		want      bool
	}{
		{name: "same value", plaintext: "+79001234567", stored: sealed.Ciphertext, want: false},
		{name: "different value", plaintext: "+79001112233", stored: sealed.Ciphertext, want: true},
		{name: "legacy same value", plaintext: "+79001234567", stored: "+79001234567", want: false},
		{name: "legacy different value", plaintext: "+79001112233", stored: "+79001234567", want: true},
		{name: "both empty", plaintext: "", stored: "", want: false},
		{name: "newly set", plaintext: "+79001234567", stored: "", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Changed(tt.plaintext, tt.stored))
		})
	}
}

func TestReveal(t *testing.T) {
	v := newTestVault(t)
	sealed, err := v.Seal("7707083893")
	require.NoError(t, err)

	got := v.Reveal("tax_id", sealed.Ciphertext)
	require.NotNil(t, got)
	assert.Equal(t, "7707083893", *got)

	legacy := v.Reveal("tax_id", "7707083893")
	require.NotNil(t, legacy)
	assert.Equal(t, "7707083893", *legacy)

	assert.Nil(t, v.Reveal("tax_id", ""))
}

func TestReveal_FailureDegradesToNil(t *testing.T) {
	otherCodec, err := fieldcrypt.New("ff000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e", testIndexKey)
	require.NoError(t, err)
	other := NewVault(otherCodec, newNoopLogger(), nil, false)

	v := newTestVault(t)
	sealed, err := v.Seal("7707083893")
	require.NoError(t, err)

	assert.Nil(t, other.Reveal("tax_id", sealed.Ciphertext),
		"undecryptable field must degrade to nil, not fail the read")
}

func TestDisplayAccount_StripsInternals(t *testing.T) {
	v := newTestVault(t)
	phone, err := v.Seal("+79001234567")
	require.NoError(t, err)
	taxID, err := v.Seal("7707083893")
	require.NoError(t, err)

	trialEnd := time.Now().Add(48 * time.Hour)
	acc := &models.Account{
		UID:                "uid-1",
		Email:              "user@example.com",
		PasswordCredential: "$2a$10$secret",
		Phone:              phone.Ciphertext,
		PhoneIndex:         phone.Index,
		TaxID:              taxID.Ciphertext,
		TaxIDIndex:         taxID.Index,
		SubscriptionStatus: models.StatusTrial,
		TrialEndDate:       &trialEnd,
	}

	display := v.DisplayAccount(acc)

	require.NotNil(t, display.Phone)
	assert.Equal(t, "+79001234567", *display.Phone)
	require.NotNil(t, display.TaxID)
	assert.Equal(t, "7707083893", *display.TaxID)
	assert.Equal(t, models.StatusTrial, display.SubscriptionStatus)
	assert.Equal(t, &trialEnd, display.TrialEndDate)
}

func TestVerifyRoundTrip(t *testing.T) {
	v := newTestVault(t)
	sealed, err := v.Seal("value")
	require.NoError(t, err)

	kind, ok := v.VerifyRoundTrip("value", sealed.Ciphertext)
	assert.Equal(t, fieldcrypt.KindDecrypted, kind)
	assert.True(t, ok)

	kind, ok = v.VerifyRoundTrip("other", sealed.Ciphertext)
	assert.Equal(t, fieldcrypt.KindDecrypted, kind)
	assert.False(t, ok)

	kind, ok = v.VerifyRoundTrip("value", "value")
	assert.Equal(t, fieldcrypt.KindLegacy, kind)
	assert.False(t, ok)
}
