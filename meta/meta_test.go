package meta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/actioncodes/protocol-core/actioncode/acerr"
)

func TestBuildKnownVector(t *testing.T) {
	out, err := Build(Fields{
		Ver:         2,
		ID:          "abc123",
		IntentOwner: "wallet:solana",
		Payload:     map[string]interface{}{"action": "pay-2usdc"},
	})
	require.NoError(t, err)
	require.Equal(t, "actioncodes:ver=2&id=abc123&int=wallet%3Asolana&p=%7B%22action%22%3A%22pay-2usdc%22%7D", out)
}

func TestParseRoundTrip(t *testing.T) {
	built, err := Build(Fields{
		Ver:         2,
		ID:          "abc123",
		IntentOwner: "wallet:solana",
		Payload:     map[string]interface{}{"action": "pay-2usdc"},
	})
	require.NoError(t, err)

	got, err := Parse(built)
	require.NoError(t, err)
	require.Equal(t, 2, got.Ver)
	require.Equal(t, "abc123", got.ID)
	require.Equal(t, "wallet:solana", got.IntentOwner)
	require.Equal(t, "pay-2usdc", got.Payload.(map[string]interface{})["action"])
}

func TestIssuerOmittedWhenEqualToIntentOwner(t *testing.T) {
	out, err := Build(Fields{Ver: 2, ID: "abc123", IntentOwner: "X", Issuer: "X"})
	require.NoError(t, err)
	require.Equal(t, "actioncodes:ver=2&id=abc123&int=X", out)
	require.NotContains(t, out, "iss=")

	parsed, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, "X", parsed.Issuer)
}

func TestIssuerKeptWhenDistinct(t *testing.T) {
	out, err := Build(Fields{Ver: 2, ID: "abc123", IntentOwner: "X", Issuer: "Y"})
	require.NoError(t, err)
	require.Contains(t, out, "iss=Y")

	parsed, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, "Y", parsed.Issuer)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, err := Parse("actioncodes:ver=2&id=abc&int=X&bogus=1")
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.InvalidMetaFormat, acErr.Kind)
}

func TestParseRequiresMandatoryFields(t *testing.T) {
	_, err := Parse("actioncodes:ver=2&id=abc")
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.MissingRequiredField, acErr.Kind)
}

func TestParseRejectsMissingPrefix(t *testing.T) {
	_, err := Parse("ver=2&id=abc&int=X")
	require.Error(t, err)
}

func TestBuildRejectsOversizedPayload(t *testing.T) {
	huge := strings.Repeat("a", 600)
	_, err := Build(Fields{Ver: 2, ID: "abc", IntentOwner: "X", Payload: huge})
	var acErr *acerr.Error
	require.ErrorAs(t, err, &acErr)
	require.Equal(t, acerr.MetaTooLarge, acErr.Kind)
}

func TestBuildOutputNeverExceeds512Bytes(t *testing.T) {
	out, err := Build(Fields{Ver: 2, ID: "abc123", IntentOwner: "wallet:solana"})
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), MaxBytes)
}

func TestParseTrimsWhitespaceAroundValues(t *testing.T) {
	parsed, err := Parse("actioncodes:ver=2&id=%20abc%20&int=X")
	require.NoError(t, err)
	require.Equal(t, "abc", parsed.ID)
}
