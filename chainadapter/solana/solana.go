// Package solana implements the Ed25519 chain adapter for Solana: §4.7 of
// the protocol spec. Pubkeys and signatures are base58-encoded; only
// 32-byte pubkeys and 64-byte signatures are accepted. Every predicate
// performs a fixed sequence of Ed25519 verifications regardless of whether
// an earlier decode already failed, so failure timing does not leak which
// check went wrong.
package solana

import (
	"crypto/ed25519"

	"github.com/actioncodes/protocol-core/canon"
	"github.com/actioncodes/protocol-core/chainadapter"
	"github.com/actioncodes/protocol-core/crypto"
	"github.com/actioncodes/protocol-core/types"
)

// Adapter is the Ed25519/Solana implementation of chainadapter.Adapter and
// chainadapter.TransactionAdapter. It holds no mutable state; Resolver is an
// optional capability used only by AttachProtocolMeta when a transaction
// references address-lookup-table accounts.
type Adapter struct {
	Resolver chainadapter.LookupResolver
}

// New constructs a Solana adapter. resolver may be nil; it is only needed
// for AttachProtocolMeta on versioned transactions that use address lookup
// tables.
func New(resolver chainadapter.LookupResolver) *Adapter {
	return &Adapter{Resolver: resolver}
}

// verifyEd25519 runs ed25519.Verify unconditionally, substituting zero
// buffers for invalid decodes, so every call site here performs exactly the
// same number of cryptographic operations whether or not decoding earlier
// succeeded.
func verifyEd25519(pub [32]byte, pubOK bool, msg []byte, sig [64]byte, sigOK bool) bool {
	result := ed25519.Verify(pub[:], msg, sig[:])
	return pubOK && sigOK && result
}

// VerifyWithWallet reconstructs the canonical generation message from
// (code.Pubkey, code.Timestamp) and verifies code.Signature against
// code.Pubkey.
func (a *Adapter) VerifyWithWallet(code types.ActionCode) bool {
	pub, pubOK := decodePubkey(code.Pubkey)
	sig, sigOK := decodeSignature(code.Signature)
	msg, err := canon.GenerationMessage(safePubkey(code.Pubkey, pubOK), code.Timestamp)
	if err != nil {
		msg = []byte{}
	}
	return verifyEd25519(pub, pubOK, msg, sig, sigOK) && err == nil
}

// VerifyWithDelegation verifies both the owner's signature over the
// delegation proof and the delegated key's signature over the generation
// message for (delegatedPubkey, timestamp). Both verifications always run.
func (a *Adapter) VerifyWithDelegation(code types.DelegatedActionCode) bool {
	proof := code.DelegationProof

	ownerPub, ownerPubOK := decodePubkey(proof.WalletPubkey)
	ownerSig, ownerSigOK := decodeSignature(proof.Signature)
	proofMsg, proofErr := canon.DelegationProofMessage(
		safePubkey(proof.WalletPubkey, ownerPubOK),
		safePubkey(proof.DelegatedPubkey, true),
		proof.ExpiresAt,
		string(proof.Chain),
	)
	if proofErr != nil {
		proofMsg = []byte{}
	}
	ownerOK := verifyEd25519(ownerPub, ownerPubOK, proofMsg, ownerSig, ownerSigOK) && proofErr == nil

	delegatedPub, delegatedPubOK := decodePubkey(code.Pubkey)
	delegatedSig, delegatedSigOK := decodeSignature(code.Signature)
	genMsg, genErr := canon.GenerationMessage(safePubkey(code.Pubkey, delegatedPubOK), code.Timestamp)
	if genErr != nil {
		genMsg = []byte{}
	}
	delegatedOK := verifyEd25519(delegatedPub, delegatedPubOK, genMsg, delegatedSig, delegatedSigOK) && genErr == nil

	return ownerOK && delegatedOK
}

// VerifyRevokeWithWallet verifies revokeSig against code.Pubkey over the
// canonical revoke message for (code.Pubkey, code_hash(code.Code),
// code.Timestamp).
func (a *Adapter) VerifyRevokeWithWallet(code types.ActionCode, revokeSig string) bool {
	pub, pubOK := decodePubkey(code.Pubkey)
	sig, sigOK := decodeSignature(revokeSig)
	msg, err := canon.RevokeMessage(safePubkey(code.Pubkey, pubOK), crypto.CodeHash(code.Code), code.Timestamp)
	if err != nil {
		msg = []byte{}
	}
	return verifyEd25519(pub, pubOK, msg, sig, sigOK) && err == nil
}

// VerifyRevokeWithDelegation is the delegation-mode analogue of
// VerifyRevokeWithWallet: both the owner's proof signature and the
// delegated key's revoke signature are checked, unconditionally.
func (a *Adapter) VerifyRevokeWithDelegation(code types.DelegatedActionCode, revokeSig string) bool {
	proof := code.DelegationProof

	ownerPub, ownerPubOK := decodePubkey(proof.WalletPubkey)
	ownerSig, ownerSigOK := decodeSignature(proof.Signature)
	proofMsg, proofErr := canon.DelegationProofMessage(
		safePubkey(proof.WalletPubkey, ownerPubOK),
		safePubkey(proof.DelegatedPubkey, true),
		proof.ExpiresAt,
		string(proof.Chain),
	)
	if proofErr != nil {
		proofMsg = []byte{}
	}
	ownerOK := verifyEd25519(ownerPub, ownerPubOK, proofMsg, ownerSig, ownerSigOK) && proofErr == nil

	delegatedPub, delegatedPubOK := decodePubkey(code.Pubkey)
	revokeSigDecoded, revokeSigOK := decodeSignature(revokeSig)
	revokeMsg, revokeErr := canon.RevokeMessage(safePubkey(code.Pubkey, delegatedPubOK), crypto.CodeHash(code.Code), code.Timestamp)
	if revokeErr != nil {
		revokeMsg = []byte{}
	}
	delegatedOK := verifyEd25519(delegatedPub, delegatedPubOK, revokeMsg, revokeSigDecoded, revokeSigOK) && revokeErr == nil

	return ownerOK && delegatedOK
}

// safePubkey substitutes a fixed placeholder when a pubkey failed to decode,
// so canonical-message reconstruction never has to branch its own shape on
// the decode outcome - only the final verdict does.
func safePubkey(pubkey string, ok bool) string {
	if ok {
		return pubkey
	}
	return "11111111111111111111111111111111"
}
