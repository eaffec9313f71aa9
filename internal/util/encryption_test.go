package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNewSealer_RejectsBadKeys(t *testing.T) {
	_, err := NewSealer("zz")
	assert.Error(t, err)

	_, err = NewSealer("abcd")
	assert.Error(t, err)
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"endpoint":"https://push.example"}`), "pairing-1")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "push.example")

	again, err := s.Seal([]byte(`{"endpoint":"https://push.example"}`), "pairing-1")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := s.Open(sealed, "pairing-1")
	require.NoError(t, err)
	assert.Equal(t, `{"endpoint":"https://push.example"}`, string(plain))
}

func TestSealer_BoundToAssociatedData(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("secret"), "pairing-1")
	require.NoError(t, err)

	_, err = s.Open(sealed, "pairing-2")
	assert.Error(t, err)
}

func TestSealer_WrongKey(t *testing.T) {
	s, _ := NewSealer(testKey)
	other, _ := NewSealer("ff" + testKey[2:])

	sealed, err := s.Seal([]byte("secret"), "")
	require.NoError(t, err)

	_, err = other.Open(sealed, "")
	assert.Error(t, err)
}

func TestSealer_PlaintextPassesThrough(t *testing.T) {
	s, _ := NewSealer(testKey)

	plain, err := s.Open(`{"endpoint":"x"}`, "pairing-1")
	require.NoError(t, err)
	assert.Equal(t, `{"endpoint":"x"}`, string(plain))

	var nilSealer *Sealer
	plain, err = nilSealer.Open(`{"endpoint":"x"}`, "pairing-1")
	require.NoError(t, err)
	assert.Equal(t, `{"endpoint":"x"}`, string(plain))
}

func TestSealer_NilCannotOpenSealed(t *testing.T) {
	s, _ := NewSealer(testKey)
	sealed, _ := s.Seal([]byte("secret"), "")

	var nilSealer *Sealer
	_, err := nilSealer.Open(sealed, "")
	assert.ErrorIs(t, err, ErrNoSealer)

	_, err = s.Open(sealedPrefix+"!!!", "")
	assert.Error(t, err)
	_, err = s.Open(sealedPrefix+strings.Repeat("A", 4), "")
	assert.Error(t, err)
}
