package totp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civistrom/civid/internal/common"
)

const referenceSecret = "JBSWY3DPEHPK3PXP"

func TestBase32Decode_ReferenceSecret(t *testing.T) {
	b, err := Base32Decode(referenceSecret)
	require.NoError(t, err)
	require.Len(t, b, 10)
	assert.Equal(t, []byte{0x48, 0x65, 0x6c, 0x6c, 0x6f, 0x21, 0xde, 0xad, 0xbe, 0xef}, b)
}

func TestBase32Decode_ASCII(t *testing.T) {
	b, err := Base32Decode("GEZDGNBVGY3TQOJQ")
	require.NoError(t, err)
	assert.Equal(t, []byte("1234567890"), b)
}

func TestBase32Decode_LowercaseAndPadding(t *testing.T) {
	b, err := Base32Decode("jbswy3dpehpk3pxp")
	require.NoError(t, err)
	assert.Len(t, b, 10)

	padded, err := Base32Decode("MZXW6===")
	require.NoError(t, err)
	assert.Equal(t, []byte("foo"), padded)
}

func TestBase32Decode_PartialTrailingBitsDiscarded(t *testing.T) {
	// One character is 5 bits: not enough for a byte.
	b, err := Base32Decode("A")
	require.NoError(t, err)
	assert.Empty(t, b)

	// Two characters are 10 bits: exactly one byte, 2 bits dropped.
	b, err = Base32Decode("AA")
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestBase32Decode_Empty(t *testing.T) {
	b, err := Base32Decode("")
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestBase32Decode_InvalidCharacter(t *testing.T) {
	for _, in := range []string{"ABC1", "ABC!", "AB CD", "ABC0", "A=B"} {
		_, err := Base32Decode(in)
		require.ErrorIs(t, err, common.ErrInvalidBase32, "input %q", in)
	}
}

func TestGenerateCode_ReferenceVectors(t *testing.T) {
	code, err := GenerateCode(referenceSecret, 1740000000)
	require.NoError(t, err)
	assert.Equal(t, "655327", code)

	code, err = GenerateCode(referenceSecret, 1740000030)
	require.NoError(t, err)
	assert.Equal(t, "126155", code)
}

func TestGenerateCode_StableWithinWindow(t *testing.T) {
	base, err := GenerateCode(referenceSecret, 1740000000)
	require.NoError(t, err)

	for _, offset := range []int64{1, 15, 29} {
		code, err := GenerateCode(referenceSecret, 1740000000+offset)
		require.NoError(t, err)
		assert.Equal(t, base, code, "offset %d", offset)
	}
}

func TestGenerateCode_ChangesAcrossWindows(t *testing.T) {
	code1, err := GenerateCode(referenceSecret, 1740000000)
	require.NoError(t, err)
	code2, err := GenerateCode(referenceSecret, 1740000030)
	require.NoError(t, err)
	assert.NotEqual(t, code1, code2)
}

func TestGenerateCode_SixDigitsZeroPadded(t *testing.T) {
	// Scan a range of windows; every code must be exactly 6 digits.
	for ts := int64(1740000000); ts < 1740003000; ts += Period {
		code, err := GenerateCode(referenceSecret, ts)
		require.NoError(t, err)
		require.Len(t, code, Digits)
		for _, c := range code {
			require.True(t, c >= '0' && c <= '9')
		}
	}
}

func TestGenerateCode_InvalidSecret(t *testing.T) {
	_, err := GenerateCode("NOT A SECRET!", 1740000000)
	require.ErrorIs(t, err, common.ErrInvalidBase32)
}

func TestRemainingSeconds(t *testing.T) {
	assert.Equal(t, 30, RemainingSeconds(1740000000)) // window start
	assert.Equal(t, 15, RemainingSeconds(1740000015))
	assert.Equal(t, 1, RemainingSeconds(1740000029))
	assert.Equal(t, 30, RemainingSeconds(1740000030))
}

func TestWindow(t *testing.T) {
	assert.Equal(t, int64(58000000), Window(1740000000))
	assert.Equal(t, Window(1740000000), Window(1740000029))
	assert.NotEqual(t, Window(1740000000), Window(1740000030))
}
