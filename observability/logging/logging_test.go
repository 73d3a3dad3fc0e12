package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupReturnsUsableLogger(t *testing.T) {
	logger := Setup("actioncodesd", "test")
	require.NotNil(t, logger)
}

func TestWithChainAttachesChainAttribute(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	scoped := WithChain(base, "solana")
	require.NotNil(t, scoped)
	require.NotSame(t, base, scoped)

	scoped.Info("probe")
	require.Contains(t, buf.String(), `"chain":"solana"`)
}
