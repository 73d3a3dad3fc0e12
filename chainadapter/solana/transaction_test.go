package solana

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/actioncodes/protocol-core/actioncode/acerr"
	"github.com/actioncodes/protocol-core/crypto"
	"github.com/actioncodes/protocol-core/meta"
	"github.com/actioncodes/protocol-core/types"
)

type fakeResolver struct {
	tables map[string][]string
	err    error
}

func (f fakeResolver) Resolve(_ context.Context, tableKey string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[tableKey], nil
}

func TestParseTransactionLegacyFallback(t *testing.T) {
	raw := []byte(`{
		"staticAccountKeys": ["ownerKey", "otherKey"],
		"requiredSignatures": 1,
		"instructions": [{"programIdIndex": 1, "accountKeyIndexes": [0], "data": null}],
		"signatures": ["sig1"]
	}`)

	tx, err := ParseTransaction(raw)
	require.NoError(t, err)
	require.False(t, tx.Message.Versioned)
	require.Equal(t, []string{"ownerKey", "otherKey"}, tx.Message.StaticAccountKeys)
	require.Equal(t, []string{"sig1"}, tx.Signatures)
}

func TestParseTransactionVersioned(t *testing.T) {
	raw := []byte(`{
		"message": {
			"versioned": true,
			"staticAccountKeys": ["ownerKey"],
			"requiredSignatures": 1,
			"addressTableLookups": [{"tableKey": "lut1", "writableIndexes": [0], "readonlyIndexes": [1]}]
		},
		"signatures": ["sig1"]
	}`)

	tx, err := ParseTransaction(raw)
	require.NoError(t, err)
	require.True(t, tx.Message.Versioned)
	require.Len(t, tx.Message.AddressTableLookups, 1)
}

func TestParseTransactionRejectsGarbage(t *testing.T) {
	_, err := ParseTransaction([]byte("not json at all"))
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.InvalidTransaction, acErr.Kind)
}

func buildMetaTx(t *testing.T, owner, issuer, codeHash string, ver int) Transaction {
	t.Helper()
	f := meta.Fields{Ver: ver, ID: codeHash, IntentOwner: owner, Issuer: issuer}
	serialized, err := meta.Build(f)
	require.NoError(t, err)

	return Transaction{
		Message: Message{
			StaticAccountKeys:  []string{owner, issuer, MemoProgramID},
			RequiredSignatures: 2,
			Instructions: []Instruction{
				{ProgramIDIndex: 2, AccountKeyIndexes: nil, Data: []byte(serialized)},
			},
		},
		Signatures: []string{"sig-owner", "sig-issuer"},
	}
}

func TestGetProtocolMetaFindsMemoInstruction(t *testing.T) {
	tx := buildMetaTx(t, "ownerKey", "", "hash1", meta.RequiredVersion)
	a := New(nil)

	raw, ok := a.GetProtocolMeta(tx)
	require.True(t, ok)
	require.Contains(t, raw, meta.Prefix)
}

func TestGetProtocolMetaAbsentWhenNoMemo(t *testing.T) {
	tx := Transaction{Message: Message{StaticAccountKeys: []string{"ownerKey"}, RequiredSignatures: 1}}
	a := New(nil)

	_, ok := a.GetProtocolMeta(tx)
	require.False(t, ok)
}

func TestGetProtocolMetaRejectsForeignTransactionType(t *testing.T) {
	a := New(nil)
	_, ok := a.GetProtocolMeta(foreignTransaction{})
	require.False(t, ok)
}

type foreignTransaction struct{}

func (foreignTransaction) Chain() types.Chain { return "other-chain" }

func TestVerifyTransactionMatchesCodeSucceeds(t *testing.T) {
	code := types.ActionCode{Code: "12345678", Pubkey: "ownerKey", ExpiresAt: 2000}
	tx := buildMetaTx(t, code.Pubkey, "", hashOf(code.Code), meta.RequiredVersion)

	a := New(nil)
	require.NoError(t, a.VerifyTransactionMatchesCode(code, tx, 1000))
}

// TestVerifyTransactionMatchesCodeRejectsWrongHash mirrors the scenario
// where a transaction's meta id was tampered to reference a different code.
func TestVerifyTransactionMatchesCodeRejectsWrongHash(t *testing.T) {
	code := types.ActionCode{Code: "12345678", Pubkey: "ownerKey", ExpiresAt: 2000}
	tx := buildMetaTx(t, code.Pubkey, "", hashOf("87654321"), meta.RequiredVersion)

	a := New(nil)
	err := a.VerifyTransactionMatchesCode(code, tx, 1000)
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.MetaMismatch, acErr.Kind)
	require.Equal(t, "id", acErr.Field)
}

func TestVerifyTransactionMatchesCodeRejectsExpired(t *testing.T) {
	code := types.ActionCode{Code: "12345678", Pubkey: "ownerKey", ExpiresAt: 500}
	tx := buildMetaTx(t, code.Pubkey, "", hashOf(code.Code), meta.RequiredVersion)

	a := New(nil)
	err := a.VerifyTransactionMatchesCode(code, tx, 1000)
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.ExpiredCode, acErr.Kind)
}

func TestVerifyTransactionSignedByIntentOwnerAcceptsOwnerAndIssuer(t *testing.T) {
	tx := buildMetaTx(t, "ownerKey", "issuerKey", "hash1", meta.RequiredVersion)
	tx.Message.StaticAccountKeys = []string{"ownerKey", "issuerKey", MemoProgramID}
	tx.Message.RequiredSignatures = 2

	a := New(nil)
	require.NoError(t, a.VerifyTransactionSignedByIntentOwner(context.Background(), tx))
}

func TestVerifyTransactionSignedByIntentOwnerRejectsMissingOwner(t *testing.T) {
	tx := buildMetaTx(t, "ownerKey", "", "hash1", meta.RequiredVersion)
	tx.Message.StaticAccountKeys = []string{"someoneElse", "", MemoProgramID}
	tx.Message.RequiredSignatures = 1

	a := New(nil)
	err := a.VerifyTransactionSignedByIntentOwner(context.Background(), tx)
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.NotSignedByOwner, acErr.Kind)
}

func TestVerifyTransactionSignedByIntentOwnerRejectsMissingIssuer(t *testing.T) {
	tx := buildMetaTx(t, "ownerKey", "issuerKey", "hash1", meta.RequiredVersion)
	tx.Message.StaticAccountKeys = []string{"ownerKey", "issuerKey", MemoProgramID}
	tx.Message.RequiredSignatures = 1

	a := New(nil)
	err := a.VerifyTransactionSignedByIntentOwner(context.Background(), tx)
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.NotSignedByIssuer, acErr.Kind)
}

func TestAttachProtocolMetaPreservesExistingIndexes(t *testing.T) {
	tx := Transaction{
		Message: Message{
			StaticAccountKeys:  []string{"ownerKey", "programA"},
			RequiredSignatures: 1,
			Instructions: []Instruction{
				{ProgramIDIndex: 1, AccountKeyIndexes: []int{0}, Data: []byte("payload")},
			},
		},
		Signatures: []string{"sig1"},
	}

	a := New(nil)
	out, err := a.AttachProtocolMeta(context.Background(), tx, meta.Fields{ID: "hash1", IntentOwner: "ownerKey"})
	require.NoError(t, err)

	concreteOut := out.(Transaction)
	require.Equal(t, 1, concreteOut.Message.Instructions[0].ProgramIDIndex)
	require.Equal(t, []int{0}, concreteOut.Message.Instructions[0].AccountKeyIndexes)
	require.Equal(t, []string{MemoProgramID}, concreteOut.Message.TrailingAccountKeys)
	require.Len(t, concreteOut.Message.Instructions, 2)

	memoIx := concreteOut.Message.Instructions[1]
	require.Equal(t, len(concreteOut.Message.StaticAccountKeys), memoIx.ProgramIDIndex)

	var parsed map[string]any
	raw, ok := a.GetProtocolMeta(concreteOut)
	require.True(t, ok)
	_ = json.Unmarshal([]byte(raw), &parsed) // payload is url-encoded, not JSON; existence check suffices here
}

func TestAttachProtocolMetaRejectsAlreadyPresent(t *testing.T) {
	tx := buildMetaTx(t, "ownerKey", "", "hash1", meta.RequiredVersion)

	a := New(nil)
	_, err := a.AttachProtocolMeta(context.Background(), tx, meta.Fields{ID: "hash2", IntentOwner: "ownerKey"})
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.InvalidTransaction, acErr.Kind)
}

func TestAttachProtocolMetaReusesExistingMemoKey(t *testing.T) {
	tx := Transaction{
		Message: Message{
			StaticAccountKeys:  []string{"ownerKey", MemoProgramID},
			RequiredSignatures: 1,
		},
		Signatures: []string{"sig1"},
	}

	a := New(nil)
	out, err := a.AttachProtocolMeta(context.Background(), tx, meta.Fields{ID: "hash1", IntentOwner: "ownerKey"})
	require.NoError(t, err)

	concreteOut := out.(Transaction)
	require.Empty(t, concreteOut.Message.TrailingAccountKeys)
	require.Equal(t, 1, concreteOut.Message.Instructions[0].ProgramIDIndex)
}

func TestFullAccountKeysResolvesLookupsWritableThenReadonly(t *testing.T) {
	resolver := fakeResolver{tables: map[string][]string{
		"lut1": {"w0", "w1", "r0", "r1"},
	}}
	msg := Message{
		StaticAccountKeys: []string{"static0"},
		AddressTableLookups: []AddressTableLookup{
			{TableKey: "lut1", WritableIndexes: []int{0, 1}, ReadonlyIndexes: []int{2, 3}},
		},
		TrailingAccountKeys: []string{"trailing0"},
	}

	accounts, err := fullAccountKeys(context.Background(), msg, resolver)
	require.NoError(t, err)
	require.Equal(t, []string{"static0", "w0", "w1", "r0", "r1", "trailing0"}, accounts)
}

func TestFullAccountKeysRequiresResolverWhenLookupsPresent(t *testing.T) {
	msg := Message{
		StaticAccountKeys:  []string{"static0"},
		AddressTableLookups: []AddressTableLookup{{TableKey: "lut1"}},
	}

	_, err := fullAccountKeys(context.Background(), msg, nil)
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.InvalidTransaction, acErr.Kind)
}

func hashOf(code string) string {
	return crypto.CodeHash(code)
}
