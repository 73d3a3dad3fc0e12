// Package strategy implements the two code-issuance strategies: direct
// wallet signing (Wallet) and delegated signing (Delegation). Both derive a
// decimal code deterministically from a signature and enforce the
// structural invariants of §4.4/§4.5; neither ever performs cryptographic
// signature verification itself — that is the chain adapter's job, composed
// in at the façade layer.
package strategy

import (
	"regexp"
	"strconv"

	"github.com/actioncodes/protocol-core/actioncode/acerr"
	"github.com/actioncodes/protocol-core/canon"
	"github.com/actioncodes/protocol-core/crypto"
	"github.com/actioncodes/protocol-core/types"
)

// Wallet derives and validates ActionCodes directly from a wallet's own
// signature over the canonical generation message.
type Wallet struct {
	config types.CodeGenerationConfig
}

// NewWallet constructs a Wallet strategy bound to cfg, normalized per
// CodeGenerationConfig.Normalize.
func NewWallet(cfg types.CodeGenerationConfig) *Wallet {
	return &Wallet{config: cfg.Normalize()}
}

// GenerateCode derives a deterministic ActionCode from signature, the
// wallet's own entropy source. Identical inputs always produce a
// byte-identical ActionCode; there is no way to call this without a
// signature, so generation without one is structurally impossible.
func (w *Wallet) GenerateCode(canonicalMessage []byte, chain types.Chain, signature string) (types.ActionCode, error) {
	if signature == "" {
		return types.ActionCode{}, acerr.New(acerr.InvalidSignature, "signature", "signature must not be empty")
	}
	if chain == "" {
		return types.ActionCode{}, acerr.New(acerr.InvalidInput, "chain", "chain must not be empty")
	}

	envelope, err := canon.ParseGenerationMessage(canonicalMessage)
	if err != nil {
		return types.ActionCode{}, err
	}

	code := deriveCode(canonicalMessage, signature, w.config.CodeLength)

	return types.ActionCode{
		Code:      code,
		Pubkey:    envelope.Pubkey,
		Timestamp: envelope.WindowStart,
		ExpiresAt: envelope.WindowStart + w.config.TTLMs,
		Chain:     chain,
		Signature: signature,
	}, nil
}

// ValidateCode re-checks the structural invariants of an ActionCode: format,
// required fields, and expiration. It never touches the signature - that is
// the adapter's concern, composed at the façade layer.
func (w *Wallet) ValidateCode(code types.ActionCode, nowMs int64) error {
	return validateStructure(code, w.config, nowMs)
}

// codeFormatRegexp returns a pattern matching exactly n decimal digits; it is
// compiled on every call since n varies with configuration.
func codeFormatRegexp(n int) *regexp.Regexp {
	return regexp.MustCompile(`^[0-9]{` + strconv.Itoa(n) + `}$`)
}

// deriveCode implements §4.4's derivation: K = HMAC-SHA-256(signature,
// canonicalMessage); code = digits_from_digest(K, N).
func deriveCode(canonicalMessage []byte, signature string, n int) string {
	k := crypto.HMACSha256([]byte(signature), canonicalMessage)
	return crypto.DigitsFromDigest(k[:], n)
}

// validateStructure enforces the shared format/expiry checks described in
// §4.4, used by both strategies.
func validateStructure(code types.ActionCode, cfg types.CodeGenerationConfig, nowMs int64) error {
	if code.Pubkey == "" {
		return acerr.New(acerr.MissingRequiredField, "pubkey", "action code missing pubkey")
	}
	if code.Chain == "" {
		return acerr.New(acerr.MissingRequiredField, "chain", "action code missing chain")
	}
	if code.Signature == "" {
		return acerr.New(acerr.MissingRequiredField, "signature", "action code missing signature")
	}
	if code.ExpiresAt == 0 {
		return acerr.New(acerr.MissingRequiredField, "expiresAt", "action code missing expiresAt")
	}

	if !codeFormatRegexp(cfg.CodeLength).MatchString(code.Code) {
		return acerr.New(acerr.InvalidCodeFormat, "code", "code does not match the configured digit length")
	}

	if nowMs > code.ExpiresAt+cfg.ClockSkewMs {
		return acerr.New(acerr.ExpiredCode, "expiresAt", "action code has expired")
	}
	return nil
}
