package credential

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret_EntropyAndEncoding(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(secret, secretPrefix))

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestGenerateSessionToken_DistinctNamespace(t *testing.T) {
	token, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, sessionPrefix))
	assert.False(t, strings.HasPrefix(token, secretPrefix))
}

func TestGenerateSessionToken_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := GenerateSessionToken()
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("st_abc"), HashToken("st_abc"))
	assert.NotEqual(t, HashToken("st_abc"), HashToken("st_abd"))
	assert.Len(t, HashToken("st_abc"), 64)
}
