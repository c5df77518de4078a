package common

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	require.NoError(t, err)
	assert.Len(t, s, n*2)

	_, err = hex.DecodeString(s)
	assert.NoError(t, err, "string is not valid hex")
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestGenerateRandByteArray_LengthAndEntropy(t *testing.T) {
	a, err := GenerateRandByteArray(SaltSize)
	require.NoError(t, err)
	b, err := GenerateRandByteArray(SaltSize)
	require.NoError(t, err)

	assert.Len(t, a, SaltSize)
	assert.Len(t, b, SaltSize)
	assert.NotEqual(t, a, b, "two 32-byte random arrays must differ")
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf)

	WipeByteArray(nil)
}
