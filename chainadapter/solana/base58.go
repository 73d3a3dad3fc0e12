package solana

import (
	"github.com/btcsuite/btcutil/base58"

	"github.com/actioncodes/protocol-core/actioncode/acerr"
)

const (
	pubkeySize    = 32
	signatureSize = 64
)

// decodePubkey base58-decodes s and requires it to be exactly 32 bytes, the
// size of an Ed25519 public key.
func decodePubkey(s string) ([pubkeySize]byte, bool) {
	var out [pubkeySize]byte
	raw := base58.Decode(s)
	if len(raw) != pubkeySize {
		return out, false
	}
	copy(out[:], raw)
	return out, true
}

// decodeSignature base58-decodes s and requires it to be exactly 64 bytes,
// the size of an Ed25519 signature.
func decodeSignature(s string) ([signatureSize]byte, bool) {
	var out [signatureSize]byte
	raw := base58.Decode(s)
	if len(raw) != signatureSize {
		return out, false
	}
	copy(out[:], raw)
	return out, true
}

// EncodePubkey base58-encodes a 32-byte Ed25519 public key.
func EncodePubkey(b [pubkeySize]byte) string {
	return base58.Encode(b[:])
}

// EncodeSignature base58-encodes a 64-byte Ed25519 signature.
func EncodeSignature(b [signatureSize]byte) string {
	return base58.Encode(b[:])
}

// ValidPubkeyFormat reports whether s decodes as a syntactically valid
// Solana public key, without saying anything about whether it signed
// anything.
func ValidPubkeyFormat(s string) bool {
	_, ok := decodePubkey(s)
	return ok
}

// invalidPubkeyErr builds the INVALID_PUBKEY_FORMAT error for a
// syntactically malformed pubkey. No operation in this package calls it.
func invalidPubkeyErr(field, value string) error {
	return acerr.New(acerr.InvalidPubkeyFormat, field, "not a valid base58-encoded 32-byte Solana pubkey: "+value)
}
