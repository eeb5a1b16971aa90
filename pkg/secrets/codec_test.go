package secrets

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbgateway/services/connector"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

// TestCodec_RoundTrip verifies that a configuration survives seal and open
// exactly.
func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey(0x42))
	require.NoError(t, err)

	cfg := connector.Config{
		Host:     "db.internal",
		Port:     5432,
		Username: "reporting",
		Password: "s3cr3t!",
		Database: "sales",
		SSLMode:  "disable",
	}
	token, err := codec.Encrypt(cfg)
	require.NoError(t, err)
	assert.NotContains(t, token, "s3cr3t")

	got, err := codec.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

// TestCodec_TokensAreNonDeterministic verifies a fresh nonce per seal.
func TestCodec_TokensAreNonDeterministic(t *testing.T) {
	codec, err := NewCodec(testKey(0x42))
	require.NoError(t, err)

	cfg := connector.Config{Host: "h", Port: 3306}
	t1, err := codec.Encrypt(cfg)
	require.NoError(t, err)
	t2, err := codec.Encrypt(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

// TestCodec_TamperedToken verifies that any modification fails with
// ErrDecryption.
func TestCodec_TamperedToken(t *testing.T) {
	codec, err := NewCodec(testKey(0x42))
	require.NoError(t, err)

	token, err := codec.Encrypt(connector.Config{Host: "h", Port: 3306})
	require.NoError(t, err)

	raw, err := base64.URLEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.URLEncoding.EncodeToString(raw)

	_, err = codec.Decrypt(tampered)
	assert.ErrorIs(t, err, ErrDecryption)
}

// TestCodec_WrongKey verifies tokens sealed under one key do not open
// under another.
func TestCodec_WrongKey(t *testing.T) {
	c1, err := NewCodec(testKey(0x01))
	require.NoError(t, err)
	c2, err := NewCodec(testKey(0x02))
	require.NoError(t, err)

	token, err := c1.Encrypt(connector.Config{Host: "h", Port: 3306})
	require.NoError(t, err)

	_, err = c2.Decrypt(token)
	assert.ErrorIs(t, err, ErrDecryption)
}

// TestCodec_GarbageTokens verifies malformed input fails closed.
func TestCodec_GarbageTokens(t *testing.T) {
	codec, err := NewCodec(testKey(0x42))
	require.NoError(t, err)

	for _, token := range []string{"", "not base64 !!!", base64.URLEncoding.EncodeToString([]byte("short"))} {
		_, err := codec.Decrypt(token)
		assert.ErrorIs(t, err, ErrDecryption, "token %q", token)
	}
}

// TestNewCodec_KeyLength verifies the 32-byte key requirement.
func TestNewCodec_KeyLength(t *testing.T) {
	_, err := NewCodec([]byte("too short"))
	assert.ErrorContains(t, err, "32 bytes")

	_, err = NewCodecFromBase64("%%%not-base64%%%")
	assert.ErrorContains(t, err, "base64")

	_, err = NewCodecFromBase64(base64.StdEncoding.EncodeToString(testKey(0x07)))
	assert.NoError(t, err)
}
