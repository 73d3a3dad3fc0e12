// Package crypto implements the hashing, key-derivation, and encoding
// primitives the action-code protocol builds on. Every function here is
// pure and allocation-light; none of them touch the network or disk.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// Sha256 returns the SHA-256 digest of msg.
func Sha256(msg []byte) [32]byte {
	return sha256.Sum256(msg)
}

// HMACSha256 returns HMAC-SHA-256(key, msg).
func HMACSha256(key, msg []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// HKDFSha256 runs RFC 5869 extract-then-expand HKDF over SHA-256, returning
// exactly l bytes of output keying material.
func HKDFSha256(ikm, salt, info []byte, l int) ([]byte, error) {
	reader := hkdf.New(sha256.New, ikm, salt, info)
	out := make([]byte, l)
	if _, err := reader.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// TruncateBits reads the first ceil(nbits/8) bytes of b as a big-endian
// unsigned integer and masks off any bits beyond nbits.
func TruncateBits(b []byte, nbits int) *big.Int {
	if nbits <= 0 {
		return new(big.Int)
	}
	nbytes := (nbits + 7) / 8
	if nbytes > len(b) {
		nbytes = len(b)
	}
	v := new(big.Int).SetBytes(b[:nbytes])

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(nbits)), big.NewInt(1))
	return v.And(v, mask)
}

// DigitsFromDigest interprets digest as an unsigned big-endian integer,
// reduces it modulo 10^n, and returns the result left-padded with zeros to
// exactly n decimal digits. The shape of this computation never branches on
// the digest's value, keeping it constant-time with respect to the derived
// code.
func DigitsFromDigest(digest []byte, n int) string {
	value := new(big.Int).SetBytes(digest)
	modulus := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	value.Mod(value, modulus)

	// value < 10^n, so its decimal form has at most n digits and always fits
	// right-aligned in the zero-filled buffer.
	padded := make([]byte, n)
	for i := range padded {
		padded[i] = '0'
	}
	digits := value.String()
	copy(padded[n-len(digits):], digits)
	return string(padded)
}
