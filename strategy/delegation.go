package strategy

import (
	"github.com/actioncodes/protocol-core/actioncode/acerr"
	"github.com/actioncodes/protocol-core/canon"
	"github.com/actioncodes/protocol-core/types"
)

// maxDelegationLifetimeMs bounds how far into the future a delegation proof
// may set ExpiresAt: 365 days, per §3's DelegationProof invariant.
const maxDelegationLifetimeMs = int64(365) * 24 * 60 * 60 * 1000

// Delegation issues and validates ActionCodes on behalf of a wallet owner
// who has pre-signed a DelegationProof authorizing a second keypair. It
// never generates the owner's proof signature; it only consumes one that
// was produced out-of-band.
type Delegation struct {
	config types.CodeGenerationConfig
}

// NewDelegation constructs a Delegation strategy bound to cfg.
func NewDelegation(cfg types.CodeGenerationConfig) *Delegation {
	return &Delegation{config: cfg.Normalize()}
}

// GenerateDelegatedCode validates proof, then issues an ActionCode whose
// Pubkey is proof.DelegatedPubkey, as in §4.4, with proof attached.
func (d *Delegation) GenerateDelegatedCode(proof types.DelegationProof, canonicalMessage []byte, chain types.Chain, signature string, nowMs int64) (types.DelegatedActionCode, error) {
	if err := validateProofStructure(proof, nowMs); err != nil {
		return types.DelegatedActionCode{}, err
	}
	if signature == "" {
		return types.DelegatedActionCode{}, acerr.New(acerr.InvalidSignature, "signature", "signature must not be empty")
	}

	envelope, err := canon.ParseGenerationMessage(canonicalMessage)
	if err != nil {
		return types.DelegatedActionCode{}, err
	}
	if envelope.Pubkey != proof.DelegatedPubkey {
		return types.DelegatedActionCode{}, acerr.New(acerr.InvalidInput, "delegatedPubkey", "canonical message pubkey does not match proof.delegatedPubkey")
	}

	code := deriveCode(canonicalMessage, signature, d.config.CodeLength)
	expiresAt := envelope.WindowStart + d.config.TTLMs
	if expiresAt > proof.ExpiresAt {
		return types.DelegatedActionCode{}, acerr.New(acerr.InvalidInput, "expiresAt", "action code would outlive its delegation proof")
	}

	return types.DelegatedActionCode{
		ActionCode: types.ActionCode{
			Code:      code,
			Pubkey:    proof.DelegatedPubkey,
			Timestamp: envelope.WindowStart,
			ExpiresAt: expiresAt,
			Chain:     chain,
			Signature: signature,
		},
		DelegationProof: proof,
	}, nil
}

// ValidateDelegatedCode re-checks the structural invariants of a
// DelegatedActionCode: the embedded proof's own validity, the
// pubkey-binding and outlives-the-proof invariants of §3, and the shared
// format/expiry checks of §4.4. Cryptographic signature verification is the
// chain adapter's job, composed in at the façade layer.
func (d *Delegation) ValidateDelegatedCode(code types.DelegatedActionCode, nowMs int64) error {
	if err := validateProofStructure(code.DelegationProof, nowMs); err != nil {
		return err
	}
	if code.Pubkey != code.DelegationProof.DelegatedPubkey {
		return acerr.New(acerr.InvalidInput, "delegatedPubkey", "action code pubkey does not match proof.delegatedPubkey")
	}
	if code.ExpiresAt > code.DelegationProof.ExpiresAt {
		return acerr.New(acerr.InvalidInput, "expiresAt", "action code outlives its delegation proof")
	}
	return validateStructure(code.ActionCode, d.config, nowMs)
}

// validateProofStructure enforces §3's DelegationProof invariants: both
// pubkeys present, chain present, a signature present, and the
// not-yet-expired / not-too-far-future bound on ExpiresAt.
func validateProofStructure(proof types.DelegationProof, nowMs int64) error {
	if proof.WalletPubkey == "" {
		return acerr.New(acerr.MissingRequiredField, "walletPubkey", "delegation proof missing walletPubkey")
	}
	if proof.DelegatedPubkey == "" {
		return acerr.New(acerr.MissingRequiredField, "delegatedPubkey", "delegation proof missing delegatedPubkey")
	}
	if proof.Chain == "" {
		return acerr.New(acerr.MissingRequiredField, "chain", "delegation proof missing chain")
	}
	if proof.Signature == "" {
		return acerr.New(acerr.MissingRequiredField, "signature", "delegation proof missing signature")
	}
	if proof.ExpiresAt <= nowMs {
		return acerr.New(acerr.ExpiredCode, "expiresAt", "delegation proof has expired")
	}
	if proof.ExpiresAt > nowMs+maxDelegationLifetimeMs {
		return acerr.New(acerr.InvalidInput, "expiresAt", "delegation proof expiresAt is further than 365 days in the future")
	}
	return nil
}
