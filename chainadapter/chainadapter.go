// Package chainadapter defines the contract every supported chain must
// implement: four boolean signature-verification predicates, plus
// transaction-meta binding operations that live on the concrete adapter.
// Predicates never panic or return an error; callers translate a false into
// a typed acerr.InvalidSignature at the façade boundary.
package chainadapter

import (
	"context"

	"github.com/actioncodes/protocol-core/meta"
	"github.com/actioncodes/protocol-core/types"
)

// Adapter verifies signatures for one chain. Every predicate must run a
// fixed sequence of verification steps regardless of whether an earlier
// step already failed, so a caller observing only timing cannot learn which
// check failed first (§4.6, §5).
type Adapter interface {
	// VerifyWithWallet checks code.Signature against code.Pubkey over the
	// canonical generation message for (code.Pubkey, code.Timestamp).
	VerifyWithWallet(code types.ActionCode) bool

	// VerifyWithDelegation checks both the owner's signature over the
	// delegation proof and the delegated key's signature over the
	// generation message. Both verifications always run.
	VerifyWithDelegation(code types.DelegatedActionCode) bool

	// VerifyRevokeWithWallet checks revokeSig against code.Pubkey over the
	// canonical revoke message for (code.Pubkey, code_hash(code.Code),
	// code.Timestamp).
	VerifyRevokeWithWallet(code types.ActionCode, revokeSig string) bool

	// VerifyRevokeWithDelegation is the delegation-mode analogue of
	// VerifyRevokeWithWallet: both the owner's proof signature and the
	// delegated key's revoke signature are checked.
	VerifyRevokeWithDelegation(code types.DelegatedActionCode, revokeSig string) bool
}

// TransactionAdapter is implemented by chain adapters that also support
// binding an ActionCode to an on-chain transaction via protocol meta
// (§4.7). Not every chain need implement it; the façade only requires it
// for the transaction-binding operations.
type TransactionAdapter interface {
	Adapter

	// GetProtocolMeta returns the raw meta string carried by the first memo
	// instruction in tx whose payload parses as protocol meta, or "" if
	// none does.
	GetProtocolMeta(tx Transaction) (string, bool)

	// ParseMeta parses tx's protocol meta, if present.
	ParseMeta(tx Transaction) (meta.Fields, bool, error)

	// VerifyTransactionMatchesCode checks tx's meta binds to code: version,
	// code hash, and intent owner must match, and code must not have
	// expired as of now.
	VerifyTransactionMatchesCode(code types.ActionCode, tx Transaction, nowMs int64) error

	// VerifyTransactionSignedByIntentOwner checks that tx's required
	// signers include the meta's intent owner and, if present and
	// distinct, its issuer.
	VerifyTransactionSignedByIntentOwner(ctx context.Context, tx Transaction) error

	// AttachProtocolMeta returns a copy of tx with a memo instruction
	// carrying m inserted, preserving every existing instruction's
	// programIdIndex and accountKeyIndexes. Fails if tx already carries
	// protocol meta.
	AttachProtocolMeta(ctx context.Context, tx Transaction, m meta.Fields) (Transaction, error)
}

// Transaction is an opaque handle to a chain-specific transaction; only the
// concrete adapter that produced or accepted it knows how to interpret the
// bytes underneath.
type Transaction interface {
	// Chain identifies which adapter understands this transaction.
	Chain() types.Chain
}

// LookupResolver resolves the accounts referenced by an address lookup
// table, injected as a capability so the core never performs RPC itself
// (§1 scope note, §9 design notes).
type LookupResolver interface {
	Resolve(ctx context.Context, tableKey string) ([]string, error)
}
