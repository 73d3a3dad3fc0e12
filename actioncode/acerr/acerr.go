// Package acerr defines the protocol's closed error-kind taxonomy. Every
// error the core packages return is an *Error carrying one of these kinds,
// so callers across process boundaries can switch on a stable string code
// instead of matching message text.
package acerr

import "fmt"

// Kind is one of a closed set of error classifications. Any string converts
// to a Kind, but Valid reports membership in the closed set and New refuses
// anything outside it, mirroring the validated-enum pattern used elsewhere in
// the codebase for closed sets.
type Kind string

const (
	ExpiredCode           Kind = "EXPIRED_CODE"
	InvalidCode           Kind = "INVALID_CODE"
	InvalidCodeFormat     Kind = "INVALID_CODE_FORMAT"
	InvalidSignature      Kind = "INVALID_SIGNATURE"
	MissingMeta           Kind = "MISSING_META"
	InvalidMetaFormat     Kind = "INVALID_META_FORMAT"
	MetaMismatch          Kind = "META_MISMATCH"
	MetaTooLarge          Kind = "META_TOO_LARGE"
	InvalidTransaction    Kind = "INVALID_TRANSACTION_FORMAT"
	NotSignedByOwner      Kind = "TRANSACTION_NOT_SIGNED_BY_INTENDED_OWNER"
	NotSignedByIssuer     Kind = "TRANSACTION_NOT_SIGNED_BY_ISSUER"
	InvalidPubkeyFormat   Kind = "INVALID_PUBKEY_FORMAT"
	InvalidInput          Kind = "INVALID_INPUT"
	MissingRequiredField  Kind = "MISSING_REQUIRED_FIELD"
	CryptoError           Kind = "CRYPTO_ERROR"
	InvalidDigest         Kind = "INVALID_DIGEST"
	InvalidAdapter        Kind = "INVALID_ADAPTER"
)

var validKinds = map[Kind]struct{}{
	ExpiredCode:          {},
	InvalidCode:          {},
	InvalidCodeFormat:    {},
	InvalidSignature:     {},
	MissingMeta:          {},
	InvalidMetaFormat:    {},
	MetaMismatch:         {},
	MetaTooLarge:         {},
	InvalidTransaction:   {},
	NotSignedByOwner:     {},
	NotSignedByIssuer:    {},
	InvalidPubkeyFormat:  {},
	InvalidInput:         {},
	MissingRequiredField: {},
	CryptoError:          {},
	InvalidDigest:        {},
	InvalidAdapter:       {},
}

// Valid reports whether k is a member of the closed error-kind set.
func (k Kind) Valid() bool {
	_, ok := validKinds[k]
	return ok
}

// Error is the typed error every strategy, codec, and façade operation in
// this module returns on failure. It never carries signature material or
// other secret-dependent intermediate values in Detail.
type Error struct {
	Kind   Kind
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// New constructs an *Error for kind k. It panics if k is not one of the
// closed kinds, since that would indicate a programming error inside this
// module rather than a caller mistake.
func New(k Kind, field, detail string) *Error {
	if !k.Valid() {
		panic(fmt.Sprintf("acerr: unknown error kind %q", k))
	}
	return &Error{Kind: k, Field: field, Detail: detail}
}

// Is reports whether err is an *Error of kind k, enabling errors.Is(err,
// acerr.New(k, "", "")) style checks at call sites that only care about the
// kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
