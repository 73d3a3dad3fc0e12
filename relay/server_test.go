package relay

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/stretchr/testify/require"

	"github.com/actioncodes/protocol-core/actioncode"
	"github.com/actioncodes/protocol-core/chainadapter/solana"
	"github.com/actioncodes/protocol-core/types"
)

type fakeAdapter struct{}

func (fakeAdapter) VerifyWithWallet(code types.ActionCode) bool { return code.Signature != "" }
func (fakeAdapter) VerifyWithDelegation(code types.DelegatedActionCode) bool {
	return code.Signature != ""
}
func (fakeAdapter) VerifyRevokeWithWallet(code types.ActionCode, revokeSig string) bool {
	return revokeSig != ""
}
func (fakeAdapter) VerifyRevokeWithDelegation(code types.DelegatedActionCode, revokeSig string) bool {
	return revokeSig != ""
}

func newTestServer() *Server {
	p := actioncode.NewProtocol(types.CodeGenerationConfig{CodeLength: 8, TTLMs: 120000})
	p.RegisterAdapter("solana", fakeAdapter{})
	return NewServer(Config{Protocol: p, AdminJWTSecret: "test-secret"})
}

func TestHandleGenerateHappyPath(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(generateRequest{
		Pubkey: "ownerKey", Chain: "solana", WindowStart: 1000, Signature: "client-sig",
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/codes/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var code types.ActionCode
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&code))
	require.Equal(t, "ownerKey", code.Pubkey)
}

func TestHandleGenerateRejectsUnconfiguredChain(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(generateRequest{Pubkey: "ownerKey", Chain: "ethereum", WindowStart: 1000, Signature: "sig"})

	req := httptest.NewRequest(http.MethodPost, "/v1/codes/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleValidateRoundTrip(t *testing.T) {
	s := newTestServer()
	genBody, _ := json.Marshal(generateRequest{Pubkey: "ownerKey", Chain: "solana", WindowStart: time.Now().UnixMilli(), Signature: "client-sig"})
	genReq := httptest.NewRequest(http.MethodPost, "/v1/codes/generate", bytes.NewReader(genBody))
	genRec := httptest.NewRecorder()
	s.Router().ServeHTTP(genRec, genReq)
	require.Equal(t, http.StatusOK, genRec.Code)

	var code types.ActionCode
	require.NoError(t, json.NewDecoder(genRec.Body).Decode(&code))

	valBody, _ := json.Marshal(validateRequest{Code: code})
	valReq := httptest.NewRequest(http.MethodPost, "/v1/codes/validate", bytes.NewReader(valBody))
	valRec := httptest.NewRecorder()
	s.Router().ServeHTTP(valRec, valReq)
	require.Equal(t, http.StatusOK, valRec.Code)
}

func TestAdminRouteRejectsMissingToken(t *testing.T) {
	s := newTestServer()
	body, _ := json.Marshal(registerAdapterRequest{Chain: "solana"})
	req := httptest.NewRequest(http.MethodPost, "/admin/adapters", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthzOK(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func newSolanaTestServer() *Server {
	p := actioncode.NewProtocol(types.CodeGenerationConfig{CodeLength: 8, TTLMs: 120000})
	p.RegisterAdapter("solana", solana.New(nil))
	return NewServer(Config{Protocol: p, AdminJWTSecret: "test-secret"})
}

func TestHandleBindAttachesProtocolMeta(t *testing.T) {
	s := newSolanaTestServer()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	owner := base58.Encode(pub)

	code := types.ActionCode{Code: "12345678", Pubkey: owner, ExpiresAt: 99999999999999, Chain: "solana"}
	tx := solana.Transaction{Message: solana.Message{
		StaticAccountKeys:  []string{owner},
		RequiredSignatures: 1,
	}}

	body, _ := json.Marshal(bindRequest{Chain: "solana", Transaction: tx, Code: code})
	req := httptest.NewRequest(http.MethodPost, "/v1/tx/bind", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var bound solana.Transaction
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bound))
	require.Len(t, bound.Message.Instructions, 1)
}

func TestHandleVerifyAcceptsBoundTransaction(t *testing.T) {
	s := newSolanaTestServer()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	owner := base58.Encode(pub)

	code := types.ActionCode{Code: "12345678", Pubkey: owner, ExpiresAt: 99999999999999, Chain: "solana"}
	tx := solana.Transaction{Message: solana.Message{
		StaticAccountKeys:  []string{owner},
		RequiredSignatures: 1,
	}}

	bindBody, _ := json.Marshal(bindRequest{Chain: "solana", Transaction: tx, Code: code})
	bindReq := httptest.NewRequest(http.MethodPost, "/v1/tx/bind", bytes.NewReader(bindBody))
	bindRec := httptest.NewRecorder()
	s.Router().ServeHTTP(bindRec, bindReq)
	require.Equal(t, http.StatusOK, bindRec.Code)

	var bound solana.Transaction
	require.NoError(t, json.NewDecoder(bindRec.Body).Decode(&bound))

	verifyBody, _ := json.Marshal(verifyRequest{Chain: "solana", Transaction: bound, Code: code})
	verifyReq := httptest.NewRequest(http.MethodPost, "/v1/tx/verify", bytes.NewReader(verifyBody))
	verifyRec := httptest.NewRecorder()
	s.Router().ServeHTTP(verifyRec, verifyReq)

	require.Equal(t, http.StatusOK, verifyRec.Code)
	var out map[string]bool
	require.NoError(t, json.NewDecoder(verifyRec.Body).Decode(&out))
	require.True(t, out["valid"])
}

func TestHandleVerifyRejectsUnboundTransaction(t *testing.T) {
	s := newSolanaTestServer()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	owner := base58.Encode(pub)

	code := types.ActionCode{Code: "12345678", Pubkey: owner, ExpiresAt: 99999999999999, Chain: "solana"}
	tx := solana.Transaction{Message: solana.Message{
		StaticAccountKeys:  []string{owner},
		RequiredSignatures: 1,
	}}

	body, _ := json.Marshal(verifyRequest{Chain: "solana", Transaction: tx, Code: code})
	req := httptest.NewRequest(http.MethodPost, "/v1/tx/verify", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer()
	// Record one request first: the label vectors export nothing until a
	// route has been observed.
	s.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/codes/generate", bytes.NewReader([]byte("not json"))))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# HELP")
}
