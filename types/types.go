// Package types holds the protocol's value objects. Every type here is
// immutable once constructed: no method mutates receiver state, and no
// shared mutable state crosses a value's lifetime.
package types

// Chain identifies a short, lowercase chain name the façade can dispatch to,
// e.g. "solana".
type Chain string

// ActionCode is a short-lived decimal code bound to a public key and a time
// window. It is produced once by a strategy and never mutated afterward.
type ActionCode struct {
	Code      string
	Pubkey    string
	Timestamp int64
	ExpiresAt int64
	Chain     Chain
	Signature string
}

// DelegationProof authorizes DelegatedPubkey to issue action codes on behalf
// of WalletPubkey until ExpiresAt. Signature is the wallet owner's signature
// over the canonical, pre-signature serialization of the other four fields.
type DelegationProof struct {
	WalletPubkey    string
	DelegatedPubkey string
	Chain           Chain
	ExpiresAt       int64
	Signature       string
}

// DelegatedActionCode is an ActionCode whose Pubkey equals the embedded
// proof's DelegatedPubkey, carrying the authorization that justifies it.
type DelegatedActionCode struct {
	ActionCode
	DelegationProof DelegationProof
}

// CodeGenerationConfig parameterizes a strategy: how long a derived code is,
// how long it lives, and how much clock skew validation tolerates.
type CodeGenerationConfig struct {
	CodeLength  int
	TTLMs       int64
	ClockSkewMs int64
}

const (
	minCodeLength     = 6
	maxCodeLength     = 24
	defaultCodeLength = 8
)

// Normalize returns a copy of c with CodeLength clamped to [6, 24] and
// defaulted to 8 when unset.
func (c CodeGenerationConfig) Normalize() CodeGenerationConfig {
	out := c
	switch {
	case out.CodeLength == 0:
		out.CodeLength = defaultCodeLength
	case out.CodeLength < minCodeLength:
		out.CodeLength = minCodeLength
	case out.CodeLength > maxCodeLength:
		out.CodeLength = maxCodeLength
	}
	if out.ClockSkewMs < 0 {
		out.ClockSkewMs = 0
	}
	return out
}
