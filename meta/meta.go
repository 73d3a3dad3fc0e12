// Package meta implements the protocol-meta wire format: a compact
// "actioncodes:"-prefixed, url-encoded key=value string embedded in a chain
// transaction's memo instruction to bind it to an ActionCode.
package meta

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/actioncodes/protocol-core/actioncode/acerr"
)

// Prefix is the literal string every serialized meta value begins with.
const Prefix = "actioncodes:"

// MaxBytes is the overall byte-length ceiling for a serialized meta string,
// and separately for the encoded form of the Payload field.
const MaxBytes = 512

// RequiredVersion is the only protocol-meta version this codec understands.
const RequiredVersion = 2

// Fields is the parsed form of a protocol-meta string.
//
//   - Ver is the protocol version; must be RequiredVersion.
//   - ID is the action code's hash (crypto.CodeHash).
//   - IntentOwner is the pubkey expected to sign the carrying transaction.
//   - Issuer is an optional second pubkey also expected to sign; omitted
//     from the wire form when it equals IntentOwner.
//   - Payload is an optional free-form structured value, encoded as compact
//     JSON on the wire.
type Fields struct {
	Ver         int
	ID          string
	IntentOwner string
	Issuer      string
	Payload     interface{}
}

// Build serializes f into the "actioncodes:"-prefixed wire format. It
// returns META_TOO_LARGE if the result, or the encoded Payload alone, would
// exceed MaxBytes.
func Build(f Fields) (string, error) {
	if f.Ver == 0 {
		f.Ver = RequiredVersion
	}
	if f.ID == "" {
		return "", acerr.New(acerr.MissingRequiredField, "id", "meta id must not be empty")
	}
	if f.IntentOwner == "" {
		return "", acerr.New(acerr.MissingRequiredField, "int", "meta int must not be empty")
	}

	var payloadEncoded string
	if f.Payload != nil {
		raw, err := json.Marshal(f.Payload)
		if err != nil {
			return "", acerr.New(acerr.InvalidInput, "p", "payload is not JSON-serializable: "+err.Error())
		}
		payloadEncoded = url.QueryEscape(string(raw))
		if len(payloadEncoded) > MaxBytes {
			return "", acerr.New(acerr.MetaTooLarge, "p", "encoded payload exceeds 512 bytes")
		}
	}

	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteString("ver=")
	b.WriteString(strconv.Itoa(f.Ver))
	b.WriteString("&id=")
	b.WriteString(url.QueryEscape(f.ID))
	b.WriteString("&int=")
	b.WriteString(url.QueryEscape(f.IntentOwner))

	if f.Issuer != "" && f.Issuer != f.IntentOwner {
		b.WriteString("&iss=")
		b.WriteString(url.QueryEscape(f.Issuer))
	}
	if payloadEncoded != "" {
		b.WriteString("&p=")
		b.WriteString(payloadEncoded)
	}

	out := b.String()
	if len(out) > MaxBytes {
		return "", acerr.New(acerr.MetaTooLarge, "", "serialized meta exceeds 512 bytes")
	}
	return out, nil
}

// knownKeys is the set of keys Parse accepts; anything else is rejected with
// INVALID_META_FORMAT.
var knownKeys = map[string]struct{}{
	"ver": {}, "id": {}, "int": {}, "iss": {}, "p": {},
}

// Parse decodes a protocol-meta string built by Build. Unknown keys and
// malformed encoding are rejected; ver, id, and int are mandatory.
func Parse(raw string) (Fields, error) {
	rest, ok := strings.CutPrefix(raw, Prefix)
	if !ok {
		return Fields{}, acerr.New(acerr.InvalidMetaFormat, "", "missing actioncodes: prefix")
	}
	if len(raw) > MaxBytes {
		return Fields{}, acerr.New(acerr.MetaTooLarge, "", "serialized meta exceeds 512 bytes")
	}

	var f Fields
	var payloadRaw string
	seen := map[string]struct{}{}

	if rest != "" {
		for _, pair := range strings.Split(rest, "&") {
			key, value, found := strings.Cut(pair, "=")
			if !found {
				return Fields{}, acerr.New(acerr.InvalidMetaFormat, "", fmt.Sprintf("malformed pair %q", pair))
			}
			if _, ok := knownKeys[key]; !ok {
				return Fields{}, acerr.New(acerr.InvalidMetaFormat, key, "unknown key")
			}
			decoded, err := url.QueryUnescape(value)
			if err != nil {
				return Fields{}, acerr.New(acerr.InvalidMetaFormat, key, "invalid url-encoding: "+err.Error())
			}
			decoded = strings.TrimSpace(decoded)
			seen[key] = struct{}{}

			switch key {
			case "ver":
				v, err := strconv.Atoi(decoded)
				if err != nil {
					return Fields{}, acerr.New(acerr.InvalidMetaFormat, "ver", "not an integer")
				}
				f.Ver = v
			case "id":
				f.ID = decoded
			case "int":
				f.IntentOwner = decoded
			case "iss":
				f.Issuer = decoded
			case "p":
				payloadRaw = decoded
			}
		}
	}

	for _, required := range []string{"ver", "id", "int"} {
		if _, ok := seen[required]; !ok {
			return Fields{}, acerr.New(acerr.MissingRequiredField, required, "meta is missing a required field")
		}
	}

	if payloadRaw != "" {
		if len(url.QueryEscape(payloadRaw)) > MaxBytes {
			return Fields{}, acerr.New(acerr.MetaTooLarge, "p", "encoded payload exceeds 512 bytes")
		}
		var payload interface{}
		if err := json.Unmarshal([]byte(payloadRaw), &payload); err != nil {
			return Fields{}, acerr.New(acerr.InvalidMetaFormat, "p", "payload is not valid JSON: "+err.Error())
		}
		f.Payload = payload
	}

	if f.Issuer == "" {
		f.Issuer = f.IntentOwner
	}

	return f, nil
}
