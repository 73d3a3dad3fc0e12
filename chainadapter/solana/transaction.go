package solana

import (
	"context"
	"encoding/json"

	"github.com/actioncodes/protocol-core/actioncode/acerr"
	"github.com/actioncodes/protocol-core/chainadapter"
	"github.com/actioncodes/protocol-core/crypto"
	"github.com/actioncodes/protocol-core/meta"
	"github.com/actioncodes/protocol-core/types"
)

// MemoProgramID is the well-known Solana memo program address. It is a
// public, stable constant, not a protocol-specific invention.
const MemoProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

// Instruction references its program and accounts by index into a
// transaction's flattened account-key space; see Transaction's doc comment
// for how that space is laid out.
type Instruction struct {
	ProgramIDIndex    int    `json:"programIdIndex"`
	AccountKeyIndexes []int  `json:"accountKeyIndexes"`
	Data              []byte `json:"data"`
}

// AddressTableLookup references accounts resolved at runtime from an
// on-chain address lookup table.
type AddressTableLookup struct {
	TableKey        string `json:"tableKey"`
	WritableIndexes []int  `json:"writableIndexes"`
	ReadonlyIndexes []int  `json:"readonlyIndexes"`
}

// Message is the instruction-bearing part of a transaction. The account-key
// index space instructions reference is, in order: StaticAccountKeys, then
// every AddressTableLookups entry's resolved writable accounts, then every
// entry's resolved readonly accounts, then (only ever appended by
// AttachProtocolMeta) TrailingAccountKeys. Because TrailingAccountKeys
// always sits at the very end of that space, appending to it can never
// renumber an index any existing instruction already references - the
// invariant §4.7 requires.
//
// The real Solana wire format is explicitly out of this module's scope
// (spec §1); this is this package's own minimal, self-consistent stand-in
// for it, sufficient to exercise the binding and index-preservation
// contracts the spec actually tests.
type Message struct {
	Versioned           bool                 `json:"versioned"`
	StaticAccountKeys    []string             `json:"staticAccountKeys"`
	RequiredSignatures   int                  `json:"requiredSignatures"`
	Instructions         []Instruction        `json:"instructions"`
	AddressTableLookups  []AddressTableLookup `json:"addressTableLookups,omitempty"`
	TrailingAccountKeys  []string             `json:"trailingAccountKeys,omitempty"`
}

// Transaction is the opaque handle chainadapter.Transaction operations
// receive; only this package's Adapter knows how to interpret it.
type Transaction struct {
	Message    Message  `json:"message"`
	Signatures []string `json:"signatures"`
}

// Chain implements chainadapter.Transaction.
func (t Transaction) Chain() types.Chain { return "solana" }

// ParseTransaction decodes raw into a Transaction, trying the versioned
// encoding first and falling back to the legacy one - the fallback order
// §9 calls out to preserve.
func ParseTransaction(raw []byte) (Transaction, error) {
	var versioned Transaction
	if err := json.Unmarshal(raw, &versioned); err == nil && versioned.Message.Versioned {
		return versioned, nil
	}

	var legacy struct {
		StaticAccountKeys  []string      `json:"staticAccountKeys"`
		RequiredSignatures int           `json:"requiredSignatures"`
		Instructions       []Instruction `json:"instructions"`
		Signatures         []string      `json:"signatures"`
	}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return Transaction{}, acerr.New(acerr.InvalidTransaction, "", "transaction did not parse as either versioned or legacy format")
	}
	return Transaction{
		Message: Message{
			Versioned:          false,
			StaticAccountKeys:  legacy.StaticAccountKeys,
			RequiredSignatures: legacy.RequiredSignatures,
			Instructions:       legacy.Instructions,
		},
		Signatures: legacy.Signatures,
	}, nil
}

// fullAccountKeys returns the flattened account-key space instructions
// index into, resolving any address lookup tables via resolver. Safe to
// call with a nil resolver when there are no lookups to resolve.
func fullAccountKeys(ctx context.Context, msg Message, resolver chainadapter.LookupResolver) ([]string, error) {
	out := append([]string(nil), msg.StaticAccountKeys...)

	if len(msg.AddressTableLookups) > 0 {
		if resolver == nil {
			return nil, acerr.New(acerr.InvalidTransaction, "addressTableLookups", "lookup table resolution capability required but not provided")
		}
		var writable, readonly []string
		for _, lookup := range msg.AddressTableLookups {
			resolved, err := resolver.Resolve(ctx, lookup.TableKey)
			if err != nil {
				return nil, acerr.New(acerr.InvalidTransaction, "addressTableLookups", "failed to resolve lookup table: "+err.Error())
			}
			for _, idx := range lookup.WritableIndexes {
				if idx < 0 || idx >= len(resolved) {
					return nil, acerr.New(acerr.InvalidTransaction, "addressTableLookups", "writable index out of range")
				}
				writable = append(writable, resolved[idx])
			}
			for _, idx := range lookup.ReadonlyIndexes {
				if idx < 0 || idx >= len(resolved) {
					return nil, acerr.New(acerr.InvalidTransaction, "addressTableLookups", "readonly index out of range")
				}
				readonly = append(readonly, resolved[idx])
			}
		}
		out = append(out, writable...)
		out = append(out, readonly...)
	}

	out = append(out, msg.TrailingAccountKeys...)
	return out, nil
}

// asTransaction asserts that t is a solana Transaction, the only concrete
// type this adapter knows how to interpret.
func asTransaction(t chainadapter.Transaction) (Transaction, error) {
	tx, ok := t.(Transaction)
	if !ok {
		return Transaction{}, acerr.New(acerr.InvalidTransaction, "", "transaction is not a Solana transaction")
	}
	return tx, nil
}

// memoInstructionData returns the raw bytes of the first memo instruction
// whose data parses as protocol meta, if any. Program ids are looked up among
// StaticAccountKeys and TrailingAccountKeys at their positions in the index
// space Message describes; lookup-table accounts are not resolved here.
func memoInstructionData(tx Transaction) ([]byte, bool) {
	msg := tx.Message
	trailingStart := len(msg.StaticAccountKeys)
	for _, lookup := range msg.AddressTableLookups {
		trailingStart += len(lookup.WritableIndexes) + len(lookup.ReadonlyIndexes)
	}
	for _, ix := range msg.Instructions {
		idx := ix.ProgramIDIndex
		var program string
		if idx >= 0 && idx < len(msg.StaticAccountKeys) {
			program = msg.StaticAccountKeys[idx]
		} else if idx >= trailingStart && idx-trailingStart < len(msg.TrailingAccountKeys) {
			program = msg.TrailingAccountKeys[idx-trailingStart]
		}
		if program != MemoProgramID {
			continue
		}
		if _, err := meta.Parse(string(ix.Data)); err != nil {
			continue
		}
		return ix.Data, true
	}
	return nil, false
}

// GetProtocolMeta implements chainadapter.TransactionAdapter.
func (a *Adapter) GetProtocolMeta(t chainadapter.Transaction) (string, bool) {
	tx, err := asTransaction(t)
	if err != nil {
		return "", false
	}
	data, ok := memoInstructionData(tx)
	if !ok {
		return "", false
	}
	s := string(data)
	if _, err := meta.Parse(s); err != nil {
		return "", false
	}
	return s, true
}

// ParseMeta implements chainadapter.TransactionAdapter.
func (a *Adapter) ParseMeta(t chainadapter.Transaction) (meta.Fields, bool, error) {
	if _, err := asTransaction(t); err != nil {
		return meta.Fields{}, false, err
	}
	raw, ok := a.GetProtocolMeta(t)
	if !ok {
		return meta.Fields{}, false, nil
	}
	fields, err := meta.Parse(raw)
	if err != nil {
		return meta.Fields{}, false, err
	}
	return fields, true, nil
}

// VerifyTransactionMatchesCode implements chainadapter.TransactionAdapter.
func (a *Adapter) VerifyTransactionMatchesCode(code types.ActionCode, t chainadapter.Transaction, nowMs int64) error {
	fields, ok, err := a.ParseMeta(t)
	if err != nil {
		return err
	}
	if !ok {
		return acerr.New(acerr.MissingMeta, "", "transaction carries no protocol meta")
	}
	if fields.Ver != meta.RequiredVersion {
		return acerr.New(acerr.MetaMismatch, "ver", "unsupported protocol meta version")
	}
	if fields.ID != crypto.CodeHash(code.Code) {
		return acerr.New(acerr.MetaMismatch, "id", "meta id does not match code hash")
	}
	if fields.IntentOwner != code.Pubkey {
		return acerr.New(acerr.MetaMismatch, "int", "meta intent owner does not match code pubkey")
	}
	if nowMs > code.ExpiresAt {
		return acerr.New(acerr.ExpiredCode, "expiresAt", "action code has expired")
	}
	return nil
}

// VerifyTransactionSignedByIntentOwner implements
// chainadapter.TransactionAdapter.
func (a *Adapter) VerifyTransactionSignedByIntentOwner(ctx context.Context, t chainadapter.Transaction) error {
	tx, err := asTransaction(t)
	if err != nil {
		return err
	}
	fields, ok, err := a.ParseMeta(t)
	if err != nil {
		return err
	}
	if !ok {
		return acerr.New(acerr.MissingMeta, "", "transaction carries no protocol meta")
	}

	accounts, err := fullAccountKeys(ctx, tx.Message, a.Resolver)
	if err != nil {
		return err
	}
	n := tx.Message.RequiredSignatures
	if n > len(accounts) {
		n = len(accounts)
	}
	signers := make(map[string]struct{}, n)
	for _, key := range accounts[:n] {
		signers[key] = struct{}{}
	}

	if _, signed := signers[fields.IntentOwner]; !signed {
		return acerr.New(acerr.NotSignedByOwner, "int", "intent owner is not among the transaction's required signers")
	}
	if fields.Issuer != "" && fields.Issuer != fields.IntentOwner {
		if _, signed := signers[fields.Issuer]; !signed {
			return acerr.New(acerr.NotSignedByIssuer, "iss", "issuer is not among the transaction's required signers")
		}
	}
	return nil
}

// AttachProtocolMeta implements chainadapter.TransactionAdapter. It refuses
// to attach meta to a transaction that already carries it, appends the
// memo program id to the account-key space only if absent, and returns a
// transaction whose signatures are a fresh zero-filled set sized to the
// message's required-signature count (the memo instruction adds no signer),
// because the message bytes changed.
func (a *Adapter) AttachProtocolMeta(ctx context.Context, t chainadapter.Transaction, m meta.Fields) (chainadapter.Transaction, error) {
	tx, err := asTransaction(t)
	if err != nil {
		return Transaction{}, err
	}
	if _, ok := a.GetProtocolMeta(t); ok {
		return Transaction{}, acerr.New(acerr.InvalidTransaction, "", "transaction already carries protocol meta")
	}

	accounts, err := fullAccountKeys(ctx, tx.Message, a.Resolver)
	if err != nil {
		return Transaction{}, err
	}

	out := tx
	out.Message.Instructions = append([]Instruction(nil), tx.Message.Instructions...)
	out.Message.TrailingAccountKeys = append([]string(nil), tx.Message.TrailingAccountKeys...)

	memoIndex := -1
	for i, key := range accounts {
		if key == MemoProgramID {
			memoIndex = i
			break
		}
	}
	if memoIndex == -1 {
		out.Message.TrailingAccountKeys = append(out.Message.TrailingAccountKeys, MemoProgramID)
		memoIndex = len(accounts)
	}

	serialized, err := meta.Build(m)
	if err != nil {
		return Transaction{}, err
	}

	out.Message.Instructions = append(out.Message.Instructions, Instruction{
		ProgramIDIndex:    memoIndex,
		AccountKeyIndexes: nil,
		Data:              []byte(serialized),
	})

	out.Signatures = make([]string, out.Message.RequiredSignatures)
	for i := range out.Signatures {
		out.Signatures[i] = EncodeSignature([signatureSize]byte{})
	}

	return out, nil
}
