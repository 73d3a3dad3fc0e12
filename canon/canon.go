// Package canon builds the byte-exact canonical messages that wallets sign:
// the generation message, the revoke message, and the pre-signature
// delegation proof. Any change to the byte layout here breaks compatibility
// with every signature already produced against it.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/actioncodes/protocol-core/actioncode/acerr"
)

// marshalCanonical encodes v to JSON without HTML-escaping, so the bytes a
// wallet signs are exactly the bytes this package documents rather than an
// encoder-dependent escaped variant.
func marshalCanonical(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

const maxFieldLen = 100

// validateField enforces the §4.2 input guards: non-empty, at most 100
// characters, and free of quote, backslash, and C0/C1 control characters.
func validateField(name, value string) error {
	if value == "" {
		return acerr.New(acerr.InvalidInput, name, "must not be empty")
	}
	if utf8.RuneCountInString(value) > maxFieldLen {
		return acerr.New(acerr.InvalidInput, name, fmt.Sprintf("must be at most %d characters", maxFieldLen))
	}
	for _, r := range value {
		if r == '"' || r == '\\' {
			return acerr.New(acerr.InvalidInput, name, "must not contain quote or backslash characters")
		}
		if (r >= 0x00 && r <= 0x1F) || r == 0x7F || (r >= 0x80 && r <= 0x9F) {
			return acerr.New(acerr.InvalidInput, name, "must not contain control characters")
		}
	}
	return nil
}

// generationMessage mirrors the wire layout of the generation message:
// {"id":"actioncodes","ver":1,"pubkey":<P>,"windowStart":<T>}. Field order
// here is the encoding order: encoding/json marshals struct fields in
// declaration order, which is what makes this byte-exact.
type generationMessage struct {
	ID          string `json:"id"`
	Ver         int    `json:"ver"`
	Pubkey      string `json:"pubkey"`
	WindowStart int64  `json:"windowStart"`
}

// revokeMessage mirrors {"id":"actioncodes-revoke","ver":1,"pubkey":<P>,
// "codeHash":<H>,"windowStart":<T>}.
type revokeMessage struct {
	ID          string `json:"id"`
	Ver         int    `json:"ver"`
	Pubkey      string `json:"pubkey"`
	CodeHash    string `json:"codeHash"`
	WindowStart int64  `json:"windowStart"`
}

// delegationProofMessage mirrors the pre-signature delegation proof:
// {"walletPubkey":<W>,"delegatedPubkey":<D>,"expiresAt":<E>,"chain":<C>}.
type delegationProofMessage struct {
	WalletPubkey    string `json:"walletPubkey"`
	DelegatedPubkey string `json:"delegatedPubkey"`
	ExpiresAt       int64  `json:"expiresAt"`
	Chain           string `json:"chain"`
}

// GenerationMessage builds the canonical bytes a wallet signs to issue an
// action code for pubkey over the time window starting at windowStart.
func GenerationMessage(pubkey string, windowStart int64) ([]byte, error) {
	if err := validateField("pubkey", pubkey); err != nil {
		return nil, err
	}
	return marshalCanonical(generationMessage{
		ID:          "actioncodes",
		Ver:         1,
		Pubkey:      pubkey,
		WindowStart: windowStart,
	})
}

// RevokeMessage builds the canonical bytes a wallet signs to revoke the
// action code identified by codeHash.
func RevokeMessage(pubkey, codeHash string, windowStart int64) ([]byte, error) {
	if err := validateField("pubkey", pubkey); err != nil {
		return nil, err
	}
	if err := validateField("codeHash", codeHash); err != nil {
		return nil, err
	}
	return marshalCanonical(revokeMessage{
		ID:          "actioncodes-revoke",
		Ver:         1,
		Pubkey:      pubkey,
		CodeHash:    codeHash,
		WindowStart: windowStart,
	})
}

// DelegationProofMessage builds the canonical pre-signature bytes of a
// delegation proof: the signature field itself is deliberately excluded.
func DelegationProofMessage(walletPubkey, delegatedPubkey string, expiresAt int64, chain string) ([]byte, error) {
	if err := validateField("walletPubkey", walletPubkey); err != nil {
		return nil, err
	}
	if err := validateField("delegatedPubkey", delegatedPubkey); err != nil {
		return nil, err
	}
	if err := validateField("chain", chain); err != nil {
		return nil, err
	}
	return marshalCanonical(delegationProofMessage{
		WalletPubkey:    walletPubkey,
		DelegatedPubkey: delegatedPubkey,
		ExpiresAt:       expiresAt,
		Chain:           chain,
	})
}

// ParsedGenerationEnvelope captures the two fields the wallet strategy needs
// out of a generation message; every other key is treated as opaque.
type ParsedGenerationEnvelope struct {
	Pubkey      string
	WindowStart int64
}

// ParseGenerationMessage extracts pubkey and windowStart from raw canonical
// generation-message bytes, tolerating unknown additional keys.
func ParseGenerationMessage(raw []byte) (ParsedGenerationEnvelope, error) {
	var env struct {
		Pubkey      string `json:"pubkey"`
		WindowStart int64  `json:"windowStart"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ParsedGenerationEnvelope{}, acerr.New(acerr.InvalidInput, "canonicalMessage", "not valid JSON: "+err.Error())
	}
	if env.Pubkey == "" {
		return ParsedGenerationEnvelope{}, acerr.New(acerr.MissingRequiredField, "pubkey", "canonical message missing pubkey")
	}
	if env.WindowStart == 0 {
		return ParsedGenerationEnvelope{}, acerr.New(acerr.MissingRequiredField, "windowStart", "canonical message missing windowStart")
	}
	return ParsedGenerationEnvelope{Pubkey: env.Pubkey, WindowStart: env.WindowStart}, nil
}
