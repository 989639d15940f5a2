package invite

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		assert.Len(t, code, CodeLength)
		assert.NotContains(t, code, "+")
		assert.NotContains(t, code, "/")
		assert.False(t, seen[code])
		seen[code] = true
	}
}

func TestDeepLink(t *testing.T) {
	assert.Equal(t, "https://t.me/repday_bot?startapp=abc-_DEF123", DeepLink("repday_bot", "abc-_DEF123"))
}

func TestQRCodeBase64IsPNG(t *testing.T) {
	encoded, err := QRCodeBase64(DeepLink("repday_bot", "abcdefghijk"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")))
}
