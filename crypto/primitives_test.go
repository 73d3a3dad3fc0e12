package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigitsFromDigestIsFixedLength(t *testing.T) {
	digest := Sha256([]byte("some signature bytes"))

	for _, n := range []int{6, 8, 12, 24} {
		got := DigitsFromDigest(digest[:], n)
		require.Len(t, got, n)
		for _, r := range got {
			require.True(t, r >= '0' && r <= '9')
		}
	}
}

func TestDigitsFromDigestIsDeterministic(t *testing.T) {
	digest := Sha256([]byte("fixed input"))
	a := DigitsFromDigest(digest[:], 8)
	b := DigitsFromDigest(digest[:], 8)
	require.Equal(t, a, b)
}

func TestDigitsFromDigestPadsZeros(t *testing.T) {
	// A digest whose value mod 10^8 is small must still produce 8 digits.
	digest := make([]byte, 32)
	digest[31] = 5
	require.Equal(t, "00000005", DigitsFromDigest(digest, 8))
}

func TestTruncateBitsMasksPartialByte(t *testing.T) {
	b := []byte{0xff, 0xff}
	got := TruncateBits(b, 12)
	require.Equal(t, int64(0xfff), got.Int64())
}

func TestTruncateBitsWholeBytes(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	got := TruncateBits(b, 24)
	require.Equal(t, int64(0x010203), got.Int64())
}

func TestHKDFSha256Deterministic(t *testing.T) {
	ikm := []byte("signature-bytes")
	salt := []byte("salt")
	info := []byte("actioncodes")

	a, err := HKDFSha256(ikm, salt, info, 32)
	require.NoError(t, err)
	b, err := HKDFSha256(ikm, salt, info, 32)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 32)
}

func TestHMACSha256Deterministic(t *testing.T) {
	a := HMACSha256([]byte("key"), []byte("msg"))
	b := HMACSha256([]byte("key"), []byte("msg"))
	require.Equal(t, a, b)
}
