// Package actioncode is the protocol façade (§4.8): it wires a code-issuance
// strategy to a chain adapter, owns the adapter registry, and is the only
// package that composes a strategy's structural checks with an adapter's
// cryptographic checks into one pass/fail outcome. It never holds a private
// key; every signature is produced by a caller-supplied SignFn.
package actioncode

import (
	"context"
	"sync"
	"time"

	"github.com/actioncodes/protocol-core/actioncode/acerr"
	"github.com/actioncodes/protocol-core/canon"
	"github.com/actioncodes/protocol-core/chainadapter"
	"github.com/actioncodes/protocol-core/crypto"
	"github.com/actioncodes/protocol-core/meta"
	"github.com/actioncodes/protocol-core/strategy"
	"github.com/actioncodes/protocol-core/types"
)

// SignFn is the host-supplied signing capability: given canonical message
// bytes and the target chain, it returns a signature string. The core never
// calls this synchronously in a hot loop; it suspends on the call and
// surfaces a context cancellation unchanged rather than retrying.
type SignFn func(ctx context.Context, message []byte, chain types.Chain) (string, error)

// Protocol is the façade over one configured deployment: a shared
// CodeGenerationConfig and a registry of chain adapters. The registry is
// written at construction and by RegisterAdapter; reads during Generate and
// Validate observe a consistent snapshot under a single RWMutex, matching
// §5's read-mostly, single-writer registry model.
type Protocol struct {
	wallet     *strategy.Wallet
	delegation *strategy.Delegation

	mu       sync.RWMutex
	adapters map[types.Chain]chainadapter.Adapter
}

// NewProtocol constructs a façade whose wallet and delegation strategies
// both share cfg, normalized per CodeGenerationConfig.Normalize.
func NewProtocol(cfg types.CodeGenerationConfig) *Protocol {
	return &Protocol{
		wallet:     strategy.NewWallet(cfg),
		delegation: strategy.NewDelegation(cfg),
		adapters:   make(map[types.Chain]chainadapter.Adapter),
	}
}

// RegisterAdapter adds or replaces the adapter serving chain. Safe to call
// concurrently with Generate/Validate/Revoke on other chains.
func (p *Protocol) RegisterAdapter(chain types.Chain, adapter chainadapter.Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adapters[chain] = adapter
}

// GetAdapter returns the adapter registered for chain, or INVALID_ADAPTER if
// chain is not among the configured set.
func (p *Protocol) GetAdapter(chain types.Chain) (chainadapter.Adapter, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.adapters[chain]
	if !ok {
		return nil, acerr.New(acerr.InvalidAdapter, "chain", "no adapter registered for chain \""+string(chain)+"\"")
	}
	return a, nil
}

// transactionAdapterFor returns chain's adapter as a TransactionAdapter, or
// INVALID_ADAPTER if the registered adapter does not support transaction
// binding operations.
func (p *Protocol) transactionAdapterFor(chain types.Chain) (chainadapter.TransactionAdapter, error) {
	a, err := p.GetAdapter(chain)
	if err != nil {
		return nil, err
	}
	ta, ok := a.(chainadapter.TransactionAdapter)
	if !ok {
		return nil, acerr.New(acerr.InvalidAdapter, "chain", "adapter for \""+string(chain)+"\" does not support transaction binding")
	}
	return ta, nil
}

// GenerateWithWallet implements generate(wallet, pubkey, chain, signFn):
// §4.8. It builds the canonical generation message for (pubkey,
// windowStart), obtains a signature via signFn, derives the code, and
// confirms the signature actually verifies before returning it - a
// caller-supplied SignFn that silently signs the wrong bytes is still
// caught here rather than producing an ActionCode nothing can later verify.
func (p *Protocol) GenerateWithWallet(ctx context.Context, pubkey string, chain types.Chain, windowStart int64, signFn SignFn) (types.ActionCode, error) {
	adapter, err := p.GetAdapter(chain)
	if err != nil {
		return types.ActionCode{}, err
	}

	msg, err := canon.GenerationMessage(pubkey, windowStart)
	if err != nil {
		return types.ActionCode{}, err
	}

	sig, err := signFn(ctx, msg, chain)
	if err != nil {
		return types.ActionCode{}, err
	}
	if sig == "" {
		return types.ActionCode{}, acerr.New(acerr.InvalidSignature, "signature", "signing capability returned an empty signature")
	}

	code, err := p.wallet.GenerateCode(msg, chain, sig)
	if err != nil {
		return types.ActionCode{}, err
	}

	if !adapter.VerifyWithWallet(code) {
		return types.ActionCode{}, acerr.New(acerr.InvalidSignature, "signature", "generated code does not verify against its own pubkey")
	}
	return code, nil
}

// GenerateWithDelegation implements generate(delegation, proof, chain,
// signFn): §4.8. proof must already carry the wallet owner's signature over
// the pre-signature delegation proof bytes (canon.DelegationProofMessage);
// this call only produces and verifies the delegated key's signature over
// the generation message.
func (p *Protocol) GenerateWithDelegation(ctx context.Context, proof types.DelegationProof, chain types.Chain, windowStart int64, signFn SignFn) (types.DelegatedActionCode, error) {
	adapter, err := p.GetAdapter(chain)
	if err != nil {
		return types.DelegatedActionCode{}, err
	}

	msg, err := canon.GenerationMessage(proof.DelegatedPubkey, windowStart)
	if err != nil {
		return types.DelegatedActionCode{}, err
	}

	sig, err := signFn(ctx, msg, chain)
	if err != nil {
		return types.DelegatedActionCode{}, err
	}
	if sig == "" {
		return types.DelegatedActionCode{}, acerr.New(acerr.InvalidSignature, "signature", "signing capability returned an empty signature")
	}

	code, err := p.delegation.GenerateDelegatedCode(proof, msg, chain, sig, nowMs())
	if err != nil {
		return types.DelegatedActionCode{}, err
	}

	if !adapter.VerifyWithDelegation(code) {
		return types.DelegatedActionCode{}, acerr.New(acerr.InvalidSignature, "signature", "generated delegated code does not verify")
	}
	return code, nil
}

// Validate implements validate(wallet, code): §4.8. It composes the
// strategy's structural/expiry checks with the adapter's cryptographic
// check; either one failing fails the whole call.
func (p *Protocol) Validate(code types.ActionCode) error {
	adapter, err := p.GetAdapter(code.Chain)
	if err != nil {
		return err
	}
	if err := p.wallet.ValidateCode(code, nowMs()); err != nil {
		return err
	}
	if !adapter.VerifyWithWallet(code) {
		return acerr.New(acerr.InvalidSignature, "signature", "signature failed verification")
	}
	return nil
}

// ValidateDelegated implements validate(delegation, code): §4.8.
func (p *Protocol) ValidateDelegated(code types.DelegatedActionCode) error {
	adapter, err := p.GetAdapter(code.Chain)
	if err != nil {
		return err
	}
	if err := p.delegation.ValidateDelegatedCode(code, nowMs()); err != nil {
		return err
	}
	if !adapter.VerifyWithDelegation(code) {
		return acerr.New(acerr.InvalidSignature, "signature", "delegated code failed verification")
	}
	return nil
}

// Revoke implements revoke(wallet, code, chain, signFn): §4.8. It returns
// the revoke signature as the receipt; revocation itself is never persisted
// by the core (§4.8 state machine notes).
func (p *Protocol) Revoke(ctx context.Context, code types.ActionCode, signFn SignFn) (string, error) {
	adapter, err := p.GetAdapter(code.Chain)
	if err != nil {
		return "", err
	}

	msg, err := canon.RevokeMessage(code.Pubkey, crypto.CodeHash(code.Code), code.Timestamp)
	if err != nil {
		return "", err
	}

	sig, err := signFn(ctx, msg, code.Chain)
	if err != nil {
		return "", err
	}
	if sig == "" {
		return "", acerr.New(acerr.InvalidSignature, "signature", "signing capability returned an empty signature")
	}

	if !adapter.VerifyRevokeWithWallet(code, sig) {
		return "", acerr.New(acerr.InvalidSignature, "signature", "revoke signature did not verify")
	}
	return sig, nil
}

// RevokeDelegated is the delegation-mode analogue of Revoke.
func (p *Protocol) RevokeDelegated(ctx context.Context, code types.DelegatedActionCode, signFn SignFn) (string, error) {
	adapter, err := p.GetAdapter(code.Chain)
	if err != nil {
		return "", err
	}

	msg, err := canon.RevokeMessage(code.Pubkey, crypto.CodeHash(code.Code), code.Timestamp)
	if err != nil {
		return "", err
	}

	sig, err := signFn(ctx, msg, code.Chain)
	if err != nil {
		return "", err
	}
	if sig == "" {
		return "", acerr.New(acerr.InvalidSignature, "signature", "signing capability returned an empty signature")
	}

	if !adapter.VerifyRevokeWithDelegation(code, sig) {
		return "", acerr.New(acerr.InvalidSignature, "signature", "revoke signature did not verify")
	}
	return sig, nil
}

// BindTransaction implements attach_protocol_meta composed with the code it
// is being bound to: it builds the ProtocolMetaFields for code and issuer,
// then delegates to the chain's TransactionAdapter. chain must support
// transaction binding or this fails with INVALID_ADAPTER.
func (p *Protocol) BindTransaction(ctx context.Context, chain types.Chain, tx chainadapter.Transaction, code types.ActionCode, issuer string) (chainadapter.Transaction, error) {
	ta, err := p.transactionAdapterFor(chain)
	if err != nil {
		return nil, err
	}
	return ta.AttachProtocolMeta(ctx, tx, protocolMetaFor(code, issuer))
}

// VerifyTransaction implements verify_transaction_matches_code composed
// with verify_transaction_signed_by_intent_owner: both must pass for a
// transaction to be considered a valid execution of code.
func (p *Protocol) VerifyTransaction(ctx context.Context, chain types.Chain, tx chainadapter.Transaction, code types.ActionCode) error {
	ta, err := p.transactionAdapterFor(chain)
	if err != nil {
		return err
	}
	if err := ta.VerifyTransactionMatchesCode(code, tx, nowMs()); err != nil {
		return err
	}
	return ta.VerifyTransactionSignedByIntentOwner(ctx, tx)
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// protocolMetaFor builds the ProtocolMetaFields that bind tx to code. issuer
// may be empty; meta.Build omits it from the wire form when it equals the
// intent owner.
func protocolMetaFor(code types.ActionCode, issuer string) meta.Fields {
	if issuer == code.Pubkey {
		issuer = ""
	}
	return meta.Fields{
		Ver:         meta.RequiredVersion,
		ID:          crypto.CodeHash(code.Code),
		IntentOwner: code.Pubkey,
		Issuer:      issuer,
	}
}
